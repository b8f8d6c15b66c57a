// Package views renders the HTML pages of the web interface.
//
// Pages are templ components; run `templ generate` after editing a .templ file.
package views

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/pavelanni/qpaper/internal/document"
	appI18n "github.com/pavelanni/qpaper/internal/i18n"
	"github.com/pavelanni/qpaper/internal/model"
)

// markdown renders question content. Raw HTML in the source is dropped.
var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// markdownHTML renders src, falling back to the escaped source.
func markdownHTML(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return templ.EscapeString(src)
	}
	return buf.String()
}

// link prefixes path with the deployment base path.
func link(ctx context.Context, path string) string {
	return model.BasePathFromContext(ctx) + path
}

func subjectPath(id int64, suffix string) string {
	return "/subjects/" + strconv.FormatInt(id, 10) + suffix
}

func questionPath(subjectID, questionID int64, action string) string {
	return subjectPath(subjectID, "/questions/"+strconv.FormatInt(questionID, 10)+"/"+action)
}

func roleName(ctx context.Context, r model.UserRole) string {
	if r == model.UserRoleAdmin {
		return appI18n.T(ctx, "RoleAdmin")
	}
	return appI18n.T(ctx, "RoleTeacher")
}

// marksValue leaves a zero mark blank in a form.
func marksValue(m int) string {
	if m == 0 {
		return ""
	}
	return strconv.Itoa(m)
}

func kLevels() []string {
	out := make([]string, len(model.KLevels))
	for i, k := range model.KLevels {
		out[i] = string(k)
	}
	return out
}

func coLevels() []string {
	out := make([]string, len(model.COLevels))
	for i, co := range model.COLevels {
		out[i] = string(co)
	}
	return out
}

func parts() []string {
	out := make([]string, len(model.Parts))
	for i, p := range model.Parts {
		out[i] = string(p)
	}
	return out
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func paragraphStyle(p document.Paragraph) templ.SafeCSS {
	align := p.Align
	if align == "" {
		align = document.AlignLeft
	}
	return templ.SafeCSS(fmt.Sprintf("text-align:%s;margin:%dpx 0 %dpx", align, p.Before/20, p.After/20))
}

func cellStyle(c document.TableCell) templ.SafeCSS {
	if c.WidthPct <= 0 {
		return ""
	}
	return templ.SafeCSS(fmt.Sprintf("width:%d%%", c.WidthPct))
}

// runHTML escapes a text run and keeps its line breaks.
func runHTML(text string) string {
	return strings.ReplaceAll(templ.EscapeString(text), "\n", "<br>")
}
