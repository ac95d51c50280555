// Package report renders an import batch's completion summary as a
// standalone HTML page.
package report

import (
	"bytes"
	"fmt"

	. "github.com/Michael-F-Ellis/goht" // dot import lets goht's element builders read like HTML tags

	"github.com/Michael-F-Ellis/midipipe/internal/model"
)

// RenderBatch produces a self-contained HTML document summarizing one
// ImportBatch: counts and the first errors retained on the batch.
func RenderBatch(b *model.ImportBatch) []byte {
	var buf bytes.Buffer
	head := Head("", Meta(`charset="utf-8"`), reportCSS())
	page := Html("", head, reportBody(b))
	Render(page, &buf, 0)
	return buf.Bytes()
}

func reportBody(b *model.ImportBatch) *HtmlTree {
	status := string(b.Status)
	summary := Table("",
		Tr("", Th("", "Category"), Td("", b.Category)),
		Tr("", Th("", "Status"), Td("", status)),
		Tr("", Th("", "Imported"), Td("", fmt.Sprintf("%d", b.Imported))),
		Tr("", Th("", "Skipped"), Td("", fmt.Sprintf("%d", b.Skipped))),
		Tr("", Th("", "Errors"), Td("", fmt.Sprintf("%d", b.ErrorCount))),
	)

	children := []interface{}{
		H1("", "Import batch report"),
		summary,
	}
	if len(b.Errors) > 0 {
		var items []interface{}
		for _, e := range b.Errors {
			items = append(items, Li("", e))
		}
		children = append(children, H3("", "Errors (first "+fmt.Sprintf("%d", len(b.Errors))+")"), Ul("", items...))
	}
	return Body("", children...)
}

func reportCSS() *HtmlTree {
	return Style("", `
    body { font-family: sans-serif; margin: 2em; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.3em 0.8em; text-align: left; }
    `)
}
