package dom

import (
	"strings"
	"testing"
)

func TestGetByID(t *testing.T) {
	tree := NewTree()
	host := tree.CreateElement("div")
	host.SetID("pdf-host")
	tree.Body().AppendChild(host)

	if got := tree.GetByID("pdf-host"); got == nil || !got.Same(host) {
		t.Fatal("GetByID did not find the attached element")
	}
	if tree.GetByID("missing") != nil {
		t.Error("GetByID returned a ghost element")
	}
}

func TestStylesRoundTrip(t *testing.T) {
	tree := NewTree()
	el := tree.CreateElement("div")
	el.SetStyle("width", "612px")
	el.SetStyle("height", "792px")
	el.SetStyle("width", "306px") // overwrite

	if el.Style("width") != "306px" {
		t.Errorf("width = %q, want 306px", el.Style("width"))
	}
	if el.Style("height") != "792px" {
		t.Errorf("height = %q, want 792px", el.Style("height"))
	}

	raw, _ := el.Attr("style")
	if !strings.Contains(raw, "height: 792px") || !strings.Contains(raw, "width: 306px") {
		t.Errorf("style attr not serialized: %q", raw)
	}
}

func TestQueryBySelector(t *testing.T) {
	tree := NewTree()
	for i := 1; i <= 3; i++ {
		page := tree.CreateElement("div")
		page.SetAttr("data-page-number", string(rune('0'+i)))
		page.SetAttr("class", "page")
		tree.Body().AppendChild(page)
	}

	pages, err := tree.Query(`div[data-page-number]`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	second, err := tree.Query(`div[data-page-number="2"]`)
	if err != nil || len(second) != 1 {
		t.Fatalf("attribute-value query failed: %v (%d results)", err, len(second))
	}
}

func TestGoquerySelection(t *testing.T) {
	tree := NewTree()
	wrap := tree.CreateElement("div")
	wrap.SetAttr("class", "pageWrapper")
	tree.Body().AppendChild(wrap)

	sel := tree.Selection().Find("div.pageWrapper")
	if sel.Length() != 1 {
		t.Errorf("goquery found %d wrappers, want 1", sel.Length())
	}
}

func TestAttachDetach(t *testing.T) {
	tree := NewTree()
	parent := tree.CreateElement("div")
	child := tree.CreateElement("canvas")
	tree.Body().AppendChild(parent)
	parent.AppendChild(child)

	if !child.Attached() {
		t.Fatal("child should be attached")
	}

	child.Remove()
	if child.Attached() {
		t.Error("child still attached after Remove")
	}
	if len(parent.Children()) != 0 {
		t.Error("parent still lists removed child")
	}

	// Re-attach under a different parent.
	other := tree.CreateElement("div")
	tree.Body().AppendChild(other)
	other.AppendChild(child)
	if !child.Attached() || !child.Parent().Same(other) {
		t.Error("re-attach failed")
	}
}

func TestClearResetsChildrenAndText(t *testing.T) {
	tree := NewTree()
	el := tree.CreateElement("span")
	el.SetText("glyph")
	if el.Text() != "glyph" {
		t.Fatalf("text = %q", el.Text())
	}
	el.Clear()
	if el.Text() != "" {
		t.Error("Clear left text behind")
	}
}
