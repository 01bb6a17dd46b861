package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/store"
)

// registerRoutes sets up all admin routes on the gin router.
func registerRoutes(router *gin.Engine, st *store.Store, ds *districts.Store) {
	router.GET("/", handleIndex(st))
	router.GET("/users", handleUsers(st))
	router.GET("/orders", handleOrders(st))
	router.GET("/districts", handleDistricts(ds))
	router.POST("/districts/:key", handleUpdateKeywords(ds))
	router.POST("/blacklist", handleUpdateBlacklist(ds))
	router.GET("/api/stats", handleStats(st))
}

// handleStats serves the dashboard counters as JSON for live refresh.
func handleStats(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Counts()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleIndex(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Counts()
		if err != nil {
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.HTML(http.StatusOK, "index.html", gin.H{"Stats": stats})
	}
}

func handleUsers(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := st.Users()
		if err != nil {
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.HTML(http.StatusOK, "users.html", gin.H{"Users": users})
	}
}

func handleOrders(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := st.RecentOrders(100)
		if err != nil {
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.HTML(http.StatusOK, "orders.html", gin.H{"Orders": orders})
	}
}

func handleDistricts(ds *districts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tbl := ds.Current()
		c.HTML(http.StatusOK, "districts.html", gin.H{
			"Districts": tbl.Districts,
			"Blacklist": strings.Join(tbl.Blacklist, "\n"),
		})
	}
}

// handleUpdateKeywords replaces one district's keyword list. The form sends
// keywords one per line; the change is live immediately.
func handleUpdateKeywords(ds *districts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		keywords := splitLines(c.PostForm("keywords"))
		if err := ds.SetKeywords(key, keywords); err != nil {
			c.String(http.StatusBadRequest, "%v", err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/districts")
	}
}

func handleUpdateBlacklist(ds *districts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		terms := splitLines(c.PostForm("terms"))
		if err := ds.SetBlacklist(terms); err != nil {
			c.String(http.StatusInternalServerError, "%v", err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/districts")
	}
}

// splitLines splits form input into trimmed, non-empty lines.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
