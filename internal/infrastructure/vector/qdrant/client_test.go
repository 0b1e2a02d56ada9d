package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

func sectionDoc(code, title, section string) domain.Document {
	return domain.Document{
		Text: "content of " + section,
		Metadata: domain.SectionMetadata{
			CourseCode:   code,
			CourseTitle:  title,
			SectionTitle: section,
			Lecturers:    []string{"John Doe"},
			FileName:     code + ".json",
		},
	}
}

func TestIndexSectionsCreatesCollectionAndUpserts(t *testing.T) {
	var upsertBody map[string]any
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/points") {
			if r.URL.Query().Get("wait") != "true" {
				t.Errorf("expected wait=true on upsert")
			}
			if err := json.NewDecoder(r.Body).Decode(&upsertBody); err != nil {
				t.Errorf("decode upsert body: %v", err)
			}
		}
		_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	docs := []domain.Document{
		sectionDoc("2001WETGDT", "Data Mining", "Course Contents"),
		sectionDoc("2001WETGDT", "Data Mining", "Prerequisites"),
	}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	if err := client.IndexSections(context.Background(), docs, vectors); err != nil {
		t.Fatalf("IndexSections() error = %v", err)
	}

	if len(paths) != 2 || paths[0] != "PUT /collections/courses" || paths[1] != "PUT /collections/courses/points" {
		t.Fatalf("unexpected request sequence: %v", paths)
	}

	points, _ := upsertBody["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	first, _ := points[0].(map[string]any)
	payload, _ := first["payload"].(map[string]any)
	if payload["course_code"] != "2001WETGDT" || payload["section_title"] != "Course Contents" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if id, _ := first["id"].(string); id == "" {
		t.Fatalf("expected generated point id")
	}
}

func TestIndexSectionsLengthMismatchIsError(t *testing.T) {
	client := New("http://unused", "courses")
	err := client.IndexSections(context.Background(), []domain.Document{sectionDoc("C", "T", "S")}, nil)
	if err != nil {
		t.Fatalf("empty vectors should be a no-op, got %v", err)
	}
	err = client.IndexSections(
		context.Background(),
		[]domain.Document{sectionDoc("C", "T", "S")},
		[][]float32{{0.1}, {0.2}},
	)
	if err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestEnsureCollectionToleratesConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/courses" {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	err := client.IndexSections(
		context.Background(),
		[]domain.Document{sectionDoc("C", "T", "S")},
		[][]float32{{0.1, 0.2}},
	)
	if err != nil {
		t.Fatalf("IndexSections() error = %v", err)
	}
}

func TestSearchBuildsMustFilterAndDecodesDocuments(t *testing.T) {
	var searchBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/courses/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&searchBody); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"course_code":"2001WETGDT","course_title":"Data Mining","section_title":"Course Contents","lecturers":["John Doe"],"text":"clustering"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	docs, err := client.Search(context.Background(), []float32{0.1, 0.2}, 12, domain.SearchFilter{"course_code": "2001WETGDT"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if searchBody["limit"].(float64) != 12 {
		t.Fatalf("limit = %v", searchBody["limit"])
	}
	filter, _ := searchBody["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 1 {
		t.Fatalf("expected one must clause, got %v", searchBody["filter"])
	}
	clause, _ := must[0].(map[string]any)
	if clause["key"] != "course_code" {
		t.Fatalf("unexpected clause: %v", clause)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Metadata.CourseCode != "2001WETGDT" || doc.Text != "clustering" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if len(doc.Metadata.Lecturers) != 1 || doc.Metadata.Lecturers[0] != "John Doe" {
		t.Fatalf("unexpected lecturers: %v", doc.Metadata.Lecturers)
	}
}

func TestSearchWithoutFilterOmitsFilterClause(t *testing.T) {
	var searchBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&searchBody); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	if _, err := client.Search(context.Background(), []float32{0.1}, 5, nil); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, ok := searchBody["filter"]; ok {
		t.Fatalf("expected no filter clause, got %v", searchBody["filter"])
	}
}

func TestFetchByFilterUsesScrollEndpoint(t *testing.T) {
	var scrollBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/courses/points/scroll" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&scrollBody); err != nil {
			t.Errorf("decode scroll body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"payload":{"course_code":"2500WETIOT","section_title":"Prerequisites","lecturers":"Jane Roe, John Doe","text":"none"}}
		]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	docs, err := client.FetchByFilter(context.Background(), domain.SearchFilter{
		"course_code":   "2500WETIOT",
		"section_title": "Prerequisites",
	}, 3)
	if err != nil {
		t.Fatalf("FetchByFilter() error = %v", err)
	}

	if _, ok := scrollBody["vector"]; ok {
		t.Fatalf("scroll request must not carry a vector")
	}
	filter, _ := scrollBody["filter"].(map[string]any)
	must, _ := filter["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected two must clauses, got %v", scrollBody["filter"])
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	lecturers := docs[0].Metadata.Lecturers
	if len(lecturers) != 2 || lecturers[0] != "Jane Roe" || lecturers[1] != "John Doe" {
		t.Fatalf("comma-joined lecturers not normalized: %v", lecturers)
	}
}

func TestSearchErrorIncludesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "courses")
	_, err := client.Search(context.Background(), []float32{0.1}, 5, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("error %q missing body", err.Error())
	}
}
