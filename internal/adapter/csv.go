package adapter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/events"
)

func (s *Source) delimitedEvents() events.Stream {
	return func(yield func(events.Event) bool) {
		if !yield(events.Event{Kind: events.StartContainer, Tag: s.Name}) {
			return
		}
		r := csv.NewReader(bytes.NewReader(s.data))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.ReuseRecord = false

		rows := func(emit func([]any) bool) {
			for {
				rec, err := r.Read()
				if errors.Is(err, io.EOF) {
					return
				}
				if err != nil {
					s.fail(err)
					return
				}
				row := make([]any, len(rec))
				for i, v := range rec {
					row[i] = v
				}
				if !emit(row) {
					return
				}
			}
		}
		if !tableEvents(yield, s.Name, rows) {
			return
		}
		if s.err != nil {
			return
		}
		yield(events.Event{Kind: events.EndContainer, Tag: s.Name})
	}
}
