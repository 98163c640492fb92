package view

import (
	"embed"
	"html/template"
	"strings"
	"time"

	"todo_app/internal/auth"
	"todo_app/internal/utils"

	"github.com/gin-gonic/gin"
)

// Page is the data every template renders from.
type Page struct {
	Title  string
	User   *auth.Principal
	Error  string
	Status string

	// form values echoed back after a failed submission
	Next     string
	Username string
	Email    string
	Content  string

	Todos any
}

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
}

// Parse loads every embedded page and partial.
func Parse() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// Install sets the embedded templates as the HTML renderer of r.
func Install(r *gin.Engine) error {
	tmpl, err := Parse()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)
	return nil
}

// RenderError renders the error page. API routes get JSON instead.
func RenderError(c *gin.Context, status int, message string) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") && !utils.IsHTMX(c) {
		c.JSON(status, gin.H{"error": message})
		return
	}
	page := Page{Title: message, Status: message}
	if p, err := auth.CurrentPrincipal(c); err == nil {
		page.User = p
	}
	c.HTML(status, "error.html", page)
}
