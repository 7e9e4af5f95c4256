package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

var projectColumns = []string{
	"id", "project_id", "first_name", "last_name", "email", "phone", "workflow_id", "created_by",
	"status", "service_type", "lead_status", "pincode", "created_at", "updated_at",
}

// ProjectRepository persists projects
type ProjectRepository struct {
	db Executor
}

func NewProjectRepository(db Executor) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func scanProject(s rowScanner) (models.Project, error) {
	var p models.Project
	var serviceType, leadStatus, pincode sql.NullString

	err := s.Scan(&p.ID, &p.ProjectID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.WorkflowID, &p.CreatedBy,
		&p.Status, &serviceType, &leadStatus, &pincode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.ServiceType = stringPtr(serviceType)
	p.LeadStatus = stringPtr(leadStatus)
	p.Pincode = stringPtr(pincode)
	return p, nil
}

// Create inserts p and sets its generated id
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	p.CreatedAt = timestamp(p.CreatedAt)
	p.UpdatedAt = p.CreatedAt

	q := query.Insert(constants.TableProjects, map[string]interface{}{
		"project_id":   p.ProjectID,
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"email":        p.Email,
		"phone":        p.Phone,
		"workflow_id":  p.WorkflowID,
		"created_by":   p.CreatedBy,
		"status":       p.Status,
		"service_type": p.ServiceType,
		"lead_status":  p.LeadStatus,
		"pincode":      p.Pincode,
		"created_at":   p.CreatedAt,
		"updated_at":   p.UpdatedAt,
	}).Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		if isDuplicateEntry(err) {
			return appErrors.NewConflictError("Project", "project_id", p.ProjectID)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read project id: %w", err)
	}
	p.ID = id
	return nil
}

// FindByProjectID looks a project up by its public id; nil when absent
func (r *ProjectRepository) FindByProjectID(ctx context.Context, projectID string) (*models.Project, error) {
	q := query.From(constants.TableProjects).Select(projectColumns...).Where("`project_id` = ?", projectID).Build()

	p, err := scanProject(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project %s: %w", projectID, err)
	}
	return &p, nil
}

// List returns projects newest first. An empty lead status filter, or
// "exclude", hides the excluded statuses while keeping projects with none.
func (r *ProjectRepository) List(ctx context.Context, leadStatus string, excluded []string) ([]models.Project, error) {
	b := query.From(constants.TableProjects).Select(projectColumns...)

	switch {
	case leadStatus != "" && leadStatus != constants.LeadStatusExclude:
		b.Where("`lead_status` = ?", leadStatus)
	case len(excluded) > 0:
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(excluded)), ", ")
		args := make([]interface{}, len(excluded))
		for i, s := range excluded {
			args[i] = s
		}
		b.Where(fmt.Sprintf("(`lead_status` IS NULL OR `lead_status` NOT IN (%s))", placeholders), args...)
	}

	q := b.OrderBy("created_at", "DESC").OrderBy("id", "DESC").Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateLeadStatus sets the project's lead status
func (r *ProjectRepository) UpdateLeadStatus(ctx context.Context, id int64, leadStatus string, at time.Time) error {
	q := query.Update(constants.TableProjects).
		Set(map[string]interface{}{"lead_status": leadStatus, "updated_at": timestamp(at)}).
		Where("`id` = ?", id).
		Build()

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...); err != nil {
		return fmt.Errorf("failed to update lead status of project %d: %w", id, err)
	}
	return nil
}

// Delete removes the project row
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	q := query.Delete(constants.TableProjects).Where("`id` = ?", id).Build()
	if _, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...); err != nil {
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}
	return nil
}
