package adapter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
)

// Input is already UTF-8 once decoded, whatever the declaration says.
func passthroughCharset(_ string, r io.Reader) (io.Reader, error) { return r, nil }

func (s *Source) markupEvents() events.Stream {
	return func(yield func(events.Event) bool) {
		d := xml.NewDecoder(bytes.NewReader(s.data))
		d.CharsetReader = passthroughCharset
		line := 1
		for {
			tok, err := d.Token()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				s.fail(err)
				return
			}
			var ev events.Event
			switch t := tok.(type) {
			case xml.StartElement:
				ev = events.Event{Kind: events.StartElement, Tag: t.Name.Local, Line: line}
				if len(t.Attr) > 0 {
					ev.Attrs = make(map[string]string, len(t.Attr))
					for _, a := range t.Attr {
						ev.Attrs[a.Name.Local] = a.Value
					}
				}
			case xml.EndElement:
				ev = events.Event{Kind: events.EndElement, Tag: t.Name.Local, Line: line}
			case xml.CharData:
				ev = events.Event{Kind: events.TextNode, Value: string(t), Line: line}
			case xml.Comment:
				ev = events.Event{Kind: events.CommentNode, Value: string(t), Line: line}
			case xml.ProcInst:
				ev = events.Event{Kind: events.ProcessingInstructionNode, Tag: t.Target, Value: string(t.Inst), Line: line}
			default:
				line, _ = d.InputPos()
				continue
			}
			line, _ = d.InputPos()
			if !yield(ev) {
				return
			}
		}
	}
}
