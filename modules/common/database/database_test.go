package database

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// newRESTServer - PostgREST 테이블 엔드포인트 흉내. 받은 쿼리를 queries 로 기록한다.
func newRESTServer(t *testing.T, body string, queries *[]url.Values) *SupabaseRepository {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/"+historyTable {
			http.NotFound(w, r)
			return
		}
		*queries = append(*queries, r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	repo, err := NewSupabaseRepository(srv.URL, "service-key")
	if err != nil {
		t.Fatalf("NewSupabaseRepository: %v", err)
	}
	return repo
}

func TestSupabaseRepository_ListPagesOnServer(t *testing.T) {
	var queries []url.Values
	repo := newRESTServer(t, `[{"record_id":"r-2","timestamp":"2026-01-02T00:00:00Z"},{"record_id":"r-1","timestamp":"2026-01-01T00:00:00Z"}]`, &queries)

	records, err := repo.List(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 || records[0].RecordID != "r-2" {
		t.Fatalf("records = %+v", records)
	}

	q := queries[0]
	if q.Get("order") != "timestamp.desc.nullslast" {
		t.Errorf("order = %q", q.Get("order"))
	}
	if q.Get("offset") != "20" || q.Get("limit") != "10" {
		t.Errorf("offset=%q limit=%q, want 20/10", q.Get("offset"), q.Get("limit"))
	}
}

func TestSupabaseRepository_ListWithoutLimit(t *testing.T) {
	var queries []url.Values
	repo := newRESTServer(t, `[]`, &queries)

	if _, err := repo.List(context.Background(), 0, 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := repo.List(context.Background(), 0, 5); err != nil {
		t.Fatalf("List offset only: %v", err)
	}

	if queries[0].Has("limit") || queries[0].Has("offset") {
		t.Errorf("unbounded list must not page: %v", queries[0])
	}
	if queries[1].Get("offset") != "5" || queries[1].Get("limit") != fmt.Sprint(maxListRows) {
		t.Errorf("offset only: %v", queries[1])
	}
}
