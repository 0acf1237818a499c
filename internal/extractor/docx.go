package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// extractDOCX joins the text of the body's top-level paragraphs with "\n".
// Paragraphs inside tables, text boxes and content controls are not part of
// the body sequence and are skipped.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open document part: %w", err)
	}
	defer rc.Close()

	paras, err := paragraphs(xml.NewDecoder(rc))
	if err != nil {
		return "", fmt.Errorf("parse document part: %w", err)
	}
	return strings.Join(paras, "\n"), nil
}

// paragraphs walks the document part keeping a stack of element names in the
// wordprocessing namespace (other namespaces are pushed as "").
func paragraphs(dec *xml.Decoder) ([]string, error) {
	var (
		out    []string
		stack  []string
		cur    strings.Builder
		para   = -1 // stack index of the open body paragraph
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := ""
			if t.Name.Space == wordNS {
				name = t.Name.Local
			}
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			if name == "p" && parent == "body" && para < 0 {
				para = len(stack) - 1
				cur.Reset()
				continue
			}
			if para < 0 || !ownedByParagraphRun(stack, para) {
				continue
			}
			switch name {
			case "t":
				inText = true
			case "tab":
				cur.WriteString("\t")
			case "cr":
				cur.WriteString("\n")
			case "br":
				if breakType(t) == "" || breakType(t) == "textWrapping" {
					cur.WriteString("\n")
				}
			}

		case xml.CharData:
			if inText {
				cur.Write(t)
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if name == "t" {
				inText = false
			}
			if para >= 0 && len(stack) == para {
				out = append(out, cur.String())
				para = -1
			}
		}
	}
	return out, nil
}

// ownedByParagraphRun reports whether the element on top of stack is a direct
// child of a run that belongs to the paragraph at index para, either directly
// or through a hyperlink.
func ownedByParagraphRun(stack []string, para int) bool {
	run := len(stack) - 2
	if run <= para || stack[run] != "r" {
		return false
	}
	switch run - para {
	case 1:
		return true
	case 2:
		return stack[para+1] == "hyperlink"
	}
	return false
}

func breakType(t xml.StartElement) string {
	for _, a := range t.Attr {
		if a.Name.Local == "type" {
			return a.Value
		}
	}
	return ""
}
