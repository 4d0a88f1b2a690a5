package protocol

import (
	"strings"
	"testing"
)

func TestDecodeCmd_ValidSamples(t *testing.T) {
	samples := []string{
		`{"type":"CMD","protocol_version":"1.0","req_id":"r1","cmd":"BUILD","building":0,"amount":1,"pos":[0,0]}`,
		`{"type":"CMD","protocol_version":"1.0","req_id":"r2","cmd":"HIRE","building":3,"amount":2}`,
		`{"type":"CMD","protocol_version":"1.0","req_id":"r3","cmd":"DEPOSIT","resource":1,"amount":40}`,
		`{"type":"CMD","protocol_version":"1.0","req_id":"r4","cmd":"OPEN_TRADE","peer":"P2",
		  "offer":{"offering":[{"resource":0,"amount":5}],"requesting":[]}}`,
		`{"type":"CMD","protocol_version":"1.0","req_id":"r5","cmd":"GET_TILE","pos":[-3,7]}`,
	}
	for _, s := range samples {
		if _, err := DecodeCmd([]byte(s)); err != nil {
			t.Fatalf("sample rejected: %v\n%s", err, s)
		}
	}

	cmd, err := DecodeCmd([]byte(samples[3]))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Peer != "P2" || cmd.Offer == nil || len(cmd.Offer.Offering) != 1 || cmd.Offer.Offering[0].Amount != 5 {
		t.Fatalf("decoded = %+v", cmd)
	}
}

func TestDecodeCmd_Rejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown cmd", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"EXPLODE"}`},
		{"building out of range", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"HIRE","building":256,"amount":1}`},
		{"negative amount", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"DEPOSIT","resource":0,"amount":-1}`},
		{"build without pos", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"BUILD","building":0,"amount":1}`},
		{"trade without offer", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"ACCEPT_TRADE","peer":"P1"}`},
		{"extra field", `{"type":"CMD","protocol_version":"1.0","req_id":"x","cmd":"FIRE","building":1,"amount":1,"force":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := DecodeCmd([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if cmd.ReqID != "x" {
				t.Fatalf("req id not recovered: %q", cmd.ReqID)
			}
		})
	}

	if _, err := DecodeCmd([]byte(`{not json`)); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("err = %v", err)
	}
}
