package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/hirehub/profile-evaluator/internal/domain"
)

// DriveRepo reads the slice of the drive record the pipeline consumes.
// Drive CRUD itself belongs to the drive-management collaborator.
type DriveRepo struct{ Pool PgxPool }

// NewDriveRepo constructs a DriveRepo with the given pool.
func NewDriveRepo(p PgxPool) *DriveRepo { return &DriveRepo{Pool: p} }

// Get loads a drive by id.
func (r *DriveRepo) Get(ctx domain.Context, id string) (domain.Drive, error) {
	tracer := otel.Tracer("repo.drives")
	ctx, span := tracer.Start(ctx, "drives.Get")
	defer span.End()
	q := `SELECT id, name, college_id, college_name, wecp_test_ids, rounds FROM drives WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	var d domain.Drive
	var testIDs, rounds []byte
	if err := row.Scan(&d.ID, &d.Name, &d.CollegeID, &d.CollegeName, &testIDs, &rounds); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Drive{}, fmt.Errorf("op=drive.get: %w", domain.ErrNotFound)
		}
		return domain.Drive{}, fmt.Errorf("op=drive.get: %w", err)
	}
	if len(testIDs) > 0 {
		if err := json.Unmarshal(testIDs, &d.WecpTestIDs); err != nil {
			return domain.Drive{}, fmt.Errorf("op=drive.get: %w", err)
		}
	}
	if len(rounds) > 0 {
		if err := json.Unmarshal(rounds, &d.Rounds); err != nil {
			return domain.Drive{}, fmt.Errorf("op=drive.get: %w", err)
		}
	}
	return d, nil
}
