package admin

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/models"
	"github.com/taxiline/taxiline/internal/store"
)

func setupRouter(t *testing.T, opts StartOpts) (*store.Store, *districts.Store, http.Handler) {
	t.Helper()
	conn, err := db.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	st := store.New(conn)
	ds := districts.NewStore(districts.Table{
		Districts: []districts.District{
			{Key: "central", Title: "Центральный", ThreadID: 11, Keywords: []string{"москва"}},
		},
		Blacklist: []string{"реклама"},
	})
	opts.Store = st
	opts.Districts = ds
	router, err := newRouter(opts)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return st, ds, router
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := newRouter(StartOpts{}); err == nil {
		t.Error("expected error for missing store")
	}
}

func TestIndex_ShowsCounts(t *testing.T) {
	st, _, router := setupRouter(t, StartOpts{})
	if _, _, err := st.RegisterUser(42, "driver"); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Сводка") {
		t.Error("index page missing heading")
	}
}

func TestUsers_ListsRegistered(t *testing.T) {
	st, _, router := setupRouter(t, StartOpts{})
	if _, _, err := st.RegisterUser(42, "driver42"); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/users")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "driver42") {
		t.Error("users page missing the registered user")
	}
}

func TestOrders_ListsRecent(t *testing.T) {
	st, _, router := setupRouter(t, StartOpts{})
	err := st.SaveOrder(&models.TaxiOrder{Origin: "Москва", Destination: "Тверь", RawText: "x"})
	if err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/orders")
	if !strings.Contains(w.Body.String(), "Тверь") {
		t.Error("orders page missing the stored order")
	}
}

func TestDistricts_EditorRoundTrip(t *testing.T) {
	_, ds, router := setupRouter(t, StartOpts{})

	w := get(t, router, "/districts")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Центральный") {
		t.Fatalf("districts page = %d: %s", w.Code, w.Body.String())
	}

	w = postForm(t, router, "/districts/central", url.Values{
		"keywords": {"москва\nтверь\n\n  тула  \n"},
	})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("update status = %d", w.Code)
	}
	d, _ := ds.Current().ByKey("central")
	if len(d.Keywords) != 3 || d.Keywords[2] != "тула" {
		t.Errorf("keywords = %v", d.Keywords)
	}
}

func TestDistricts_UnknownKey(t *testing.T) {
	_, _, router := setupRouter(t, StartOpts{})
	w := postForm(t, router, "/districts/nope", url.Values{"keywords": {"x"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBlacklist_Update(t *testing.T) {
	_, ds, router := setupRouter(t, StartOpts{})
	w := postForm(t, router, "/blacklist", url.Values{"terms": {"спам\nреклама"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	got := ds.Current().Blacklist
	if len(got) != 2 || got[0] != "спам" {
		t.Errorf("blacklist = %v", got)
	}
}

func TestBasicAuth(t *testing.T) {
	_, _, router := setupRouter(t, StartOpts{User: "admin", Password: "pw"})

	w := get(t, router, "/")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "pw")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec.Code)
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "Taxiline") {
		t.Error("index.html does not mention Taxiline")
	}
}

func TestStatsJSON(t *testing.T) {
	st, _, router := setupRouter(t, StartOpts{})
	if _, _, err := st.RegisterUser(42, "driver"); err != nil {
		t.Fatal(err)
	}

	w := get(t, router, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"TotalUsers":1`) {
		t.Errorf("unexpected stats body: %s", w.Body.String())
	}
}
