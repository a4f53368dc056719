package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/picourse/apiserver/types"
)

func newDirectoryFixture(t *testing.T) (http.Handler, *memStore, []RegisterResponse) {
	t.Helper()

	router, mem := newTestRouter(t)
	mem.addSubject(1, "Mathematics")
	mem.addSubject(2, "History")

	tutors := []RegisterResponse{
		register(t, router, "alice@test.com", "secret123", types.RoleTutor),
		register(t, router, "bob@test.com", "secret123", types.RoleTutor),
		register(t, router, "carol@test.com", "secret123", types.RoleTutor),
	}
	register(t, router, "student@test.com", "secret123", types.RoleStudent)

	for i, setup := range []struct {
		firstName string
		bio       string
		rating    float64
		subjects  map[int]bool
	}{
		{"Alice", "Algebra and calculus.", 4.8, map[int]bool{1: true}},
		{"Bob", "Essay writing and history.", 3.5, map[int]bool{2: true}},
		{"Carol", "Geometry for beginners.", 4.2, map[int]bool{1: true, 2: true}},
	} {
		user := mem.users[tutors[i].User.ID]
		user.FirstName = setup.firstName
		mem.users[user.ID] = user

		profile := mem.tutorProfiles[user.ID]
		profile.Bio = setup.bio
		profile.Rating = setup.rating
		mem.tutorProfiles[user.ID] = profile
		mem.teaching[user.ID] = setup.subjects
	}

	return router, mem, tutors
}

func TestListTutorsOrdering(t *testing.T) {
	router, _, _ := newDirectoryFixture(t)

	rec := doJSON(t, router, http.MethodGet, "/tutors", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TutorListResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("expected all three tutors, got total=%d items=%d", resp.Total, len(resp.Items))
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].Rating > resp.Items[i-1].Rating {
			t.Fatalf("default ordering must be rating descending, got %v then %v",
				resp.Items[i-1].Rating, resp.Items[i].Rating)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors?ordering=rating", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ascending list: status %d, body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].Rating < resp.Items[i-1].Rating {
			t.Fatalf("ordering=rating must be ascending, got %v then %v",
				resp.Items[i-1].Rating, resp.Items[i].Rating)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors?ordering=name", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown ordering: status %d, want 400", rec.Code)
	}
}

func TestListTutorsFilters(t *testing.T) {
	router, _, tutors := newDirectoryFixture(t)

	rec := doJSON(t, router, http.MethodGet, "/tutors?subject=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("subject filter: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TutorListResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 2 {
		t.Fatalf("expected the two math tutors, got total=%d", resp.Total)
	}
	for _, item := range resp.Items {
		if item.ID == tutors[1].User.ID {
			t.Fatalf("history-only tutor must not match the math filter")
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors?search=geometry", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search filter: status %d, body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	if resp.Total != 1 || resp.Items[0].ID != tutors[2].User.ID {
		t.Fatalf("expected only the geometry bio to match, got %+v", resp.Items)
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors?subject=abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric subject filter: status %d, want 400", rec.Code)
	}
}

func TestGetTutor(t *testing.T) {
	router, mem, tutors := newDirectoryFixture(t)

	rec := doJSON(t, router, http.MethodGet, "/tutors/1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get tutor: status %d, body %s", rec.Code, rec.Body.String())
	}
	var tutor types.TutorSummary
	decodeBody(t, rec, &tutor)
	if tutor.ID != tutors[0].User.ID || tutor.Name != "Alice" {
		t.Fatalf("unexpected tutor summary %+v", tutor)
	}
	if len(tutor.Subjects) != 1 || tutor.Subjects[0].Name != "Mathematics" {
		t.Fatalf("expected the taught subject set, got %+v", tutor.Subjects)
	}

	// A student id is not part of the directory.
	studentID := 0
	for id, user := range mem.users {
		if user.Role == types.RoleStudent {
			studentID = id
		}
	}
	rec = doJSON(t, router, http.MethodGet, "/tutors/"+strconv.Itoa(studentID), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("student id: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors/999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/tutors/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: status %d, want 400", rec.Code)
	}
}
