/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/picourse/apiserver/config"
	"github.com/picourse/apiserver/internal/db"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/store"
	"github.com/picourse/apiserver/types"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "testpass123"

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data for development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		return runSeed(cmd.Context(), dbConn)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedStudent struct {
	email      string
	firstName  string
	lastName   string
	gradeLevel string
}

type seedTutor struct {
	email     string
	firstName string
	lastName  string
	bio       string
	rate      string
	rating    float64
	subjects  []string
}

var (
	seedSubjects = []string{"Mathematics", "Physics", "Chemistry", "English", "History"}

	seedStudents = []seedStudent{
		{"student1@example.com", "John", "Doe", "10th Grade"},
		{"student2@example.com", "Jane", "Smith", "11th Grade"},
	}

	seedTutors = []seedTutor{
		{
			email:     "tutor1@example.com",
			firstName: "Alice",
			lastName:  "Johnson",
			bio:       "Experienced math and physics tutor with 10 years of teaching.",
			rate:      "45.00",
			rating:    4.8,
			subjects:  []string{"Mathematics", "Physics"},
		},
		{
			email:     "tutor2@example.com",
			firstName: "Bob",
			lastName:  "Williams",
			bio:       "Chemistry teacher helping students prepare for exams.",
			rate:      "35.50",
			rating:    4.5,
			subjects:  []string{"Chemistry", "Mathematics"},
		},
	}
)

func runSeed(ctx context.Context, dbConn *sql.DB) error {
	userRepo := store.NewUserRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	subjectRepo := store.NewSubjectRepository(dbConn)
	requestRepo := store.NewLessonRequestRepository(dbConn)

	fmt.Println("Seeding database...")

	subjects := make(map[string]types.Subject, len(seedSubjects))
	for _, name := range seedSubjects {
		subject, err := subjectRepo.GetByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			subject, err = subjectRepo.Create(ctx, name)
			if err == nil {
				fmt.Printf("Created subject: %s\n", name)
			}
		}
		if err != nil {
			return err
		}
		subjects[name] = subject
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	students := make([]types.User, 0, len(seedStudents))
	for _, s := range seedStudents {
		user, err := seedUser(ctx, userRepo, types.User{
			Username:     services.UsernameFromEmail(s.email),
			Email:        s.email,
			FirstName:    s.firstName,
			LastName:     s.lastName,
			Role:         types.RoleStudent,
			PasswordHash: string(hashed),
		})
		if err != nil {
			return err
		}
		gradeLevel := s.gradeLevel
		if err := profileRepo.UpdateStudentProfile(ctx, user.ID, &gradeLevel); err != nil {
			return err
		}
		students = append(students, user)
	}

	tutors := make([]types.User, 0, len(seedTutors))
	for _, t := range seedTutors {
		user, err := seedUser(ctx, userRepo, types.User{
			Username:     services.UsernameFromEmail(t.email),
			Email:        t.email,
			FirstName:    t.firstName,
			LastName:     t.lastName,
			Role:         types.RoleTutor,
			PasswordHash: string(hashed),
		})
		if err != nil {
			return err
		}
		if err := profileRepo.UpdateTutorProfile(ctx, user.ID, t.bio, t.rate, t.rating); err != nil {
			return err
		}
		subjectIDs := make([]int, 0, len(t.subjects))
		for _, name := range t.subjects {
			subjectIDs = append(subjectIDs, subjects[name].ID)
		}
		if err := profileRepo.ReplaceTutorSubjects(ctx, user.ID, subjectIDs); err != nil {
			return err
		}
		tutors = append(tutors, user)
	}

	existing, err := requestRepo.ListByStudent(ctx, students[0].ID, "")
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		tomorrow := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
		samples := []types.LessonRequest{
			{
				TutorID:         tutors[0].ID,
				StudentID:       students[0].ID,
				SubjectID:       subjects["Mathematics"].ID,
				StartTime:       tomorrow,
				DurationMinutes: 60,
				Status:          types.StatusPending,
				Note:            "Need help with algebra homework.",
			},
			{
				TutorID:         tutors[1].ID,
				StudentID:       students[0].ID,
				SubjectID:       subjects["Chemistry"].ID,
				StartTime:       tomorrow.Add(48 * time.Hour),
				DurationMinutes: 90,
				Status:          types.StatusAccepted,
				Note:            "Exam preparation session.",
			},
		}
		for _, sample := range samples {
			created, err := requestRepo.Create(ctx, sample)
			if err != nil {
				return err
			}
			fmt.Printf("Created lesson request: %s -> %s (%s)\n", created.StudentName, created.TutorName, created.SubjectName)
		}
	}

	fmt.Println("Seeding complete.")
	return nil
}

func seedUser(ctx context.Context, userRepo *store.UserRepository, user types.User) (types.User, error) {
	existing, err := userRepo.GetByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	created, err := userRepo.CreateWithProfile(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	fmt.Printf("Created %s: %s\n", created.Role, created.Username)
	return created, nil
}
