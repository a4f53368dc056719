package store

import (
	"testing"
)

func TestBuildTutorWhere(t *testing.T) {
	subjectID := 7

	tests := []struct {
		name     string
		filter   TutorFilter
		want     string
		wantArgs int
	}{
		{
			name:     "no filter",
			filter:   TutorFilter{},
			want:     "WHERE u.role = 'tutor'",
			wantArgs: 0,
		},
		{
			name:     "subject filter",
			filter:   TutorFilter{SubjectID: &subjectID},
			want:     "WHERE u.role = 'tutor' AND tp.id IN (SELECT tutor_profile_id FROM tutor_subjects WHERE subject_id = $1)",
			wantArgs: 1,
		},
		{
			name:     "search filter",
			filter:   TutorFilter{Search: "  alice "},
			want:     "WHERE u.role = 'tutor' AND (u.first_name ILIKE $1 OR u.last_name ILIKE $1 OR tp.bio ILIKE $1)",
			wantArgs: 1,
		},
		{
			name:     "combined",
			filter:   TutorFilter{SubjectID: &subjectID, Search: "math"},
			want:     "WHERE u.role = 'tutor' AND tp.id IN (SELECT tutor_profile_id FROM tutor_subjects WHERE subject_id = $1) AND (u.first_name ILIKE $2 OR u.last_name ILIKE $2 OR tp.bio ILIKE $2)",
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTutorWhere(tt.filter)
			if where != tt.want {
				t.Fatalf("where = %q, want %q", where, tt.want)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("got %d args, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestBuildTutorWhereSearchPattern(t *testing.T) {
	_, args := buildTutorWhere(TutorFilter{Search: "alice"})
	if len(args) != 1 || args[0] != "%alice%" {
		t.Fatalf("expected a substring pattern, got %v", args)
	}
}
