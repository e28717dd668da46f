package crm

import (
	"testing"

	"github.com/kbukum/crmkit/errors"
)

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		page, size  int
		wantItems   int
		wantTotal   int
		wantHasMore bool
	}{
		{"data envelope", `{"data":[{"id":"1"},{"id":"2"}],"total":5,"hasMore":true}`, 1, 2, 2, 5, true},
		{"items envelope derives hasMore from total", `{"items":[{"id":"5"}],"total":5}`, 3, 2, 1, 5, false},
		{"bare full page", `[{"id":"1"},{"id":"2"}]`, 2, 2, 2, 4, true},
		{"bare short page", `[{"id":"1"}]`, 2, 2, 1, 3, false},
		{"empty data", `{"data":[],"total":0}`, 1, 10, 0, 0, false},
		{"null data", `{"data":null}`, 1, 10, 0, 0, false},
		{"whitespace", "  \n[]", 1, 10, 0, 0, false},
		{"explicit hasMore wins", `{"data":[{"id":"1"}],"total":1,"hasMore":true}`, 1, 1, 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePage[Job]([]byte(tt.body), tt.page, tt.size)
			if err != nil {
				t.Fatalf("DecodePage() error = %v", err)
			}
			if len(p.Items) != tt.wantItems || p.Total != tt.wantTotal || p.HasMore != tt.wantHasMore {
				t.Errorf("got items=%d total=%d hasMore=%v, want %d/%d/%v",
					len(p.Items), p.Total, p.HasMore, tt.wantItems, tt.wantTotal, tt.wantHasMore)
			}
			if p.Items == nil {
				t.Error("Items should be non-nil")
			}
			if p.Page != tt.page || p.Size != tt.size {
				t.Errorf("page/size = %d/%d", p.Page, p.Size)
			}
		})
	}
}

func TestDecodePage_Errors(t *testing.T) {
	bodies := map[string]string{
		"empty":        "",
		"not json":     "<html>",
		"no array":     `{"total":3}`,
		"wrong type":   `{"data":{"id":"1"}}`,
		"broken array": `[{"id":1`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePage[Contact]([]byte(body), 1, 10)
			if !errors.Is(err, errors.ErrCodeDecode) {
				t.Errorf("error = %v, want DECODE_FAILED", err)
			}
		})
	}
}

func TestDecodePage_Fields(t *testing.T) {
	body := `{"data":[{"id":"jobs-guilford-001","locationId":"guilford","title":"Job 1","status":"scheduled","contactId":"c1"}],"total":1}`
	p, err := DecodePage[Job]([]byte(body), 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := p.Items[0]
	if got.ID != "jobs-guilford-001" || got.LocationID != "guilford" || got.Status != "scheduled" || got.ContactID != "c1" {
		t.Errorf("decoded %+v", got)
	}
}

func TestParseResource(t *testing.T) {
	for _, r := range Resources {
		got, err := ParseResource(" " + string(r) + " ")
		if err != nil || got != r {
			t.Errorf("ParseResource(%q) = %q, %v", r, got, err)
		}
		if r.Endpoint() != "/"+string(r) {
			t.Errorf("Endpoint() = %q", r.Endpoint())
		}
	}
	if got, _ := ParseResource("JOBS"); got != Jobs {
		t.Errorf("ParseResource(JOBS) = %q", got)
	}
	if _, err := ParseResource("billing"); err == nil {
		t.Error("expected error for unknown resource")
	}
}

func TestOffset(t *testing.T) {
	tests := []struct{ page, size, want int }{
		{1, 10, 0},
		{2, 10, 10},
		{3, 25, 50},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := Offset(tt.page, tt.size); got != tt.want {
			t.Errorf("Offset(%d, %d) = %d, want %d", tt.page, tt.size, got, tt.want)
		}
	}
}
