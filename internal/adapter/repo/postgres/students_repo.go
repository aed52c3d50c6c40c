package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// StudentRepo persists per-student evaluation state. Detail blobs
// (github details, resume score, wecp data, ai score) live in JSONB
// columns so the schema does not chase the scoring shape.
type StudentRepo struct{ Pool PgxPool }

// NewStudentRepo constructs a StudentRepo with the given pool.
func NewStudentRepo(p PgxPool) *StudentRepo { return &StudentRepo{Pool: p} }

const studentColumns = `id, drive_id, name, email, registration_number,
	COALESCE(degree,''),
	COALESCE(github_profile,''), github_evaluated, github_details,
	COALESCE(resume_url,''), resume_evaluated, resume_score,
	wecp_test_score, wecp_data, ai_score, created_at, updated_at`

// ListByDrive returns every student enrolled in a drive.
func (r *StudentRepo) ListByDrive(ctx domain.Context, driveID string) ([]domain.Student, error) {
	tracer := otel.Tracer("repo.students")
	ctx, span := tracer.Start(ctx, "students.ListByDrive")
	defer span.End()
	q := `SELECT ` + studentColumns + ` FROM students WHERE drive_id=$1 ORDER BY created_at`
	rows, err := r.Pool.Query(ctx, q, driveID)
	if err != nil {
		return nil, fmt.Errorf("op=student.list_by_drive: %w", err)
	}
	defer rows.Close()
	var students []domain.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("op=student.list_scan: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=student.list_rows: %w", err)
	}
	return students, nil
}

// Get loads one student by id.
func (r *StudentRepo) Get(ctx domain.Context, id string) (domain.Student, error) {
	tracer := otel.Tracer("repo.students")
	ctx, span := tracer.Start(ctx, "students.Get")
	defer span.End()
	q := `SELECT ` + studentColumns + ` FROM students WHERE id=$1`
	s, err := scanStudent(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Student{}, fmt.Errorf("op=student.get: %w", domain.ErrNotFound)
		}
		return domain.Student{}, fmt.Errorf("op=student.get: %w", err)
	}
	return s, nil
}

// Update applies a partial write; nil fields stay untouched.
func (r *StudentRepo) Update(ctx domain.Context, id string, u domain.StudentUpdate) error {
	tracer := otel.Tracer("repo.students")
	ctx, span := tracer.Start(ctx, "students.Update")
	defer span.End()

	set := "updated_at=$1"
	args := []any{time.Now().UTC()}
	add := func(col string, v any) {
		args = append(args, v)
		set += fmt.Sprintf(", %s=$%d", col, len(args))
	}
	addJSON := func(col string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		add(col, b)
		return nil
	}

	if u.GitHubProfile != nil {
		add("github_profile", *u.GitHubProfile)
	}
	if u.GitHubEvaluated != nil {
		add("github_evaluated", *u.GitHubEvaluated)
	}
	switch {
	case u.ClearGitHubDetails:
		add("github_details", nil)
	case u.GitHubDetails != nil:
		if err := addJSON("github_details", u.GitHubDetails); err != nil {
			return fmt.Errorf("op=student.update: %w", err)
		}
	}
	if u.ResumeEvaluated != nil {
		add("resume_evaluated", *u.ResumeEvaluated)
	}
	if u.ResumeScore != nil {
		if err := addJSON("resume_score", u.ResumeScore); err != nil {
			return fmt.Errorf("op=student.update: %w", err)
		}
	}
	if u.WecpTestScore != nil {
		add("wecp_test_score", *u.WecpTestScore)
	}
	if u.WecpData != nil {
		if err := addJSON("wecp_data", u.WecpData); err != nil {
			return fmt.Errorf("op=student.update: %w", err)
		}
	}
	if u.AIScore != nil {
		if err := addJSON("ai_score", u.AIScore); err != nil {
			return fmt.Errorf("op=student.update: %w", err)
		}
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE students SET %s WHERE id=$%d`, set, len(args))
	tag, err := r.Pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("op=student.update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=student.update id=%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanStudent(row rowScanner) (domain.Student, error) {
	var s domain.Student
	var ghDetails, resumeScore, wecpData, aiScore []byte
	if err := row.Scan(&s.ID, &s.DriveID, &s.Name, &s.Email, &s.RegistrationNumber,
		&s.Degree,
		&s.GitHubProfile, &s.GitHubEvaluated, &ghDetails,
		&s.ResumeURL, &s.ResumeEvaluated, &resumeScore,
		&s.WecpTestScore, &wecpData, &aiScore, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Student{}, err
	}
	if len(ghDetails) > 0 {
		s.GitHubDetails = &domain.GitHubDetails{}
		if err := json.Unmarshal(ghDetails, s.GitHubDetails); err != nil {
			return domain.Student{}, err
		}
	}
	if len(resumeScore) > 0 {
		s.ResumeScore = &domain.ResumeScore{}
		if err := json.Unmarshal(resumeScore, s.ResumeScore); err != nil {
			return domain.Student{}, err
		}
	}
	if len(wecpData) > 0 {
		s.WecpData = &domain.WecpData{}
		if err := json.Unmarshal(wecpData, s.WecpData); err != nil {
			return domain.Student{}, err
		}
	}
	if len(aiScore) > 0 {
		s.AIScore = &domain.AIScore{}
		if err := json.Unmarshal(aiScore, s.AIScore); err != nil {
			return domain.Student{}, err
		}
	}
	return s, nil
}
