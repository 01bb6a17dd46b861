package telegram

import (
	"encoding/json"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeAPI records API calls and answers them with canned results.
type fakeAPI struct {
	endpoints []string
	params    []tgbotapi.Params
	chattable []tgbotapi.Chattable
	messageID int
	err       error
}

func (f *fakeAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.endpoints = append(f.endpoints, endpoint)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	result, _ := json.Marshal(map[string]interface{}{"message_id": f.messageID})
	return &tgbotapi.APIResponse{Ok: true, Result: result}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.chattable = append(f.chattable, c)
	if f.err != nil {
		return nil, f.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestWriter_Create(t *testing.T) {
	fake := &fakeAPI{messageID: 501}
	w := &Writer{bot: fake, chatID: -1007777}

	id, err := w.Create(11, "<b>заказ</b>")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 501 {
		t.Errorf("message id = %d, want 501", id)
	}
	if len(fake.endpoints) != 1 || fake.endpoints[0] != "sendMessage" {
		t.Fatalf("endpoints = %v", fake.endpoints)
	}
	p := fake.params[0]
	if p["chat_id"] != "-1007777" || p["message_thread_id"] != "11" {
		t.Errorf("params = %v", p)
	}
	if p["parse_mode"] != tgbotapi.ModeHTML || p["disable_web_page_preview"] != "true" {
		t.Errorf("params = %v", p)
	}
}

func TestWriter_CreateError(t *testing.T) {
	fake := &fakeAPI{err: &tgbotapi.Error{Message: "Bad Request"}}
	w := &Writer{bot: fake, chatID: -1007777}
	if _, err := w.Create(11, "x"); err == nil || !strings.Contains(err.Error(), "thread 11") {
		t.Errorf("err = %v", err)
	}
}

func TestWriter_Edit(t *testing.T) {
	fake := &fakeAPI{}
	w := &Writer{bot: fake, chatID: -1007777}

	if err := w.Edit(501, "обновлённый текст"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(fake.chattable) != 1 {
		t.Fatalf("calls = %d", len(fake.chattable))
	}
	edit, ok := fake.chattable[0].(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("call type = %T", fake.chattable[0])
	}
	if edit.MessageID != 501 || edit.ChatID != -1007777 || edit.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("edit = %+v", edit)
	}
}

func TestNotifier_Notify(t *testing.T) {
	fake := &fakeAPI{}
	n := &Notifier{bot: fake}

	if err := n.Notify(555, "новый заказ"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg, ok := fake.chattable[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("call type = %T", fake.chattable[0])
	}
	if msg.ChatID != 555 || msg.Text != "новый заказ" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestModerator_JoinRequests(t *testing.T) {
	fake := &fakeAPI{}
	m := &Moderator{bot: fake, chatID: -1008888}

	if err := m.ApproveJoin(555); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := m.DeclineJoin(556); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if fake.endpoints[0] != "approveChatJoinRequest" || fake.endpoints[1] != "declineChatJoinRequest" {
		t.Errorf("endpoints = %v", fake.endpoints)
	}
	if fake.params[0]["user_id"] != "555" || fake.params[0]["chat_id"] != "-1008888" {
		t.Errorf("params = %v", fake.params[0])
	}
}

func TestModerator_KickBansThenUnbans(t *testing.T) {
	fake := &fakeAPI{}
	m := &Moderator{bot: fake, chatID: -1008888}

	if err := m.Kick(555); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if len(fake.chattable) != 2 {
		t.Fatalf("calls = %d, want ban then unban", len(fake.chattable))
	}
	ban, ok := fake.chattable[0].(tgbotapi.BanChatMemberConfig)
	if !ok || ban.UserID != 555 {
		t.Errorf("first call = %+v", fake.chattable[0])
	}
	unban, ok := fake.chattable[1].(tgbotapi.UnbanChatMemberConfig)
	if !ok || !unban.OnlyIfBanned {
		t.Errorf("second call = %+v", fake.chattable[1])
	}
}
