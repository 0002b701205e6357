package model

import (
	"errors"
	"testing"
)

func TestParseRecordRef(t *testing.T) {
	cases := []struct {
		in      string
		cat, q  string
		wantErr bool
	}{
		{in: "flags:q1", cat: "flags", q: "q1"},
		{in: ":42", cat: "", q: "42"},
		{in: "flags", wantErr: true},
		{in: "flags:", wantErr: true},
		{in: "a:b:c", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			cat, q, err := ParseRecordRef(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRecordRef) {
					t.Fatalf("expected ErrInvalidRecordRef, got %v", err)
				}
				return
			}
			if err != nil || cat != tc.cat || q != tc.q {
				t.Fatalf("got (%q, %q, %v), want (%q, %q)", cat, q, err, tc.cat, tc.q)
			}
		})
	}
}
