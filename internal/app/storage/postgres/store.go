// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/gap"
	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.EntityStore = (*Store)(nil)
var _ storage.IncidentStore = (*Store)(nil)
var _ storage.AssessmentStore = (*Store)(nil)
var _ storage.ResponseStore = (*Store)(nil)
var _ storage.CommitmentStore = (*Store)(nil)
var _ storage.GapStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, organization, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, string(u.Role), u.Organization, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = $2, name = $3, role = $4, organization = $5,
			password_hash = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		u.ID, u.Email, u.Name, string(u.Role), u.Organization, u.PasswordHash, u.Active, u.UpdatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Organization, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	u.Role = user.Role(role)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, organization, password_hash, active, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return s.scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, organization, password_hash, active, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return s.scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, role user.Role) ([]user.User, error) {
	query := `
		SELECT id, email, name, role, organization, password_hash, active, created_at, updated_at
		FROM users`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []user.User
	for rows.Next() {
		var u user.User
		var r string
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &r, &u.Organization, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Role = user.Role(r)
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- EntityStore -------------------------------------------------------------

func (s *Store) CreateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, type, lga, ward, latitude, longitude, population, households, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.Name, string(e.Type), e.Lga, e.Ward, e.Latitude, e.Longitude, e.Population, e.Households, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("insert entity: %w", err)
	}
	return e, nil
}

func (s *Store) UpdateEntity(ctx context.Context, e entity.Entity) (entity.Entity, error) {
	e.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET name = $2, type = $3, lga = $4, ward = $5, latitude = $6,
			longitude = $7, population = $8, households = $9, updated_at = $10
		WHERE id = $1`,
		e.ID, e.Name, string(e.Type), e.Lga, e.Ward, e.Latitude, e.Longitude, e.Population, e.Households, e.UpdatedAt)
	if err != nil {
		return entity.Entity{}, fmt.Errorf("update entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.Entity{}, sql.ErrNoRows
	}
	return s.GetEntity(ctx, e.ID)
}

func (s *Store) GetEntity(ctx context.Context, id string) (entity.Entity, error) {
	var e entity.Entity
	var t string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, lga, ward, latitude, longitude, population, households, created_at, updated_at
		FROM entities WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &t, &e.Lga, &e.Ward, &e.Latitude, &e.Longitude, &e.Population, &e.Households, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return entity.Entity{}, err
	}
	e.Type = entity.Type(t)
	return e, nil
}

func (s *Store) ListEntities(ctx context.Context, entityType entity.Type) ([]entity.Entity, error) {
	query := `
		SELECT id, name, type, lga, ward, latitude, longitude, population, households, created_at, updated_at
		FROM entities`
	var args []interface{}
	if entityType != "" {
		query += ` WHERE type = $1`
		args = append(args, string(entityType))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []entity.Entity
	for rows.Next() {
		var e entity.Entity
		var t string
		if err := rows.Scan(&e.ID, &e.Name, &t, &e.Lga, &e.Ward, &e.Latitude, &e.Longitude, &e.Population, &e.Households, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Type = entity.Type(t)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, a entity.Assignment) (entity.Assignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_assignments (id, entity_id, user_id, role, assigned_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.EntityID, a.UserID, a.Role, a.AssignedBy, a.CreatedAt)
	if err != nil {
		return entity.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	return a, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, entityID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entity_assignments WHERE entity_id = $1 AND user_id = $2`, entityID, userID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) listAssignments(ctx context.Context, column, value string) ([]entity.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, entity_id, user_id, role, assigned_by, created_at
		FROM entity_assignments WHERE %s = $1 ORDER BY created_at`, column), value)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []entity.Assignment
	for rows.Next() {
		var a entity.Assignment
		if err := rows.Scan(&a.ID, &a.EntityID, &a.UserID, &a.Role, &a.AssignedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListEntityAssignments(ctx context.Context, entityID string) ([]entity.Assignment, error) {
	return s.listAssignments(ctx, "entity_id", entityID)
}

func (s *Store) ListUserAssignments(ctx context.Context, userID string) ([]entity.Assignment, error) {
	return s.listAssignments(ctx, "user_id", userID)
}

// --- IncidentStore -----------------------------------------------------------

func (s *Store) CreateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (id, name, type, sub_type, severity, status, source, description,
			occurred_at, declared_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inc.ID, inc.Name, string(inc.Type), inc.SubType, string(inc.Severity), string(inc.Status),
		inc.Source, inc.Description, inc.OccurredAt, inc.DeclaredBy, inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("insert incident: %w", err)
	}
	return inc, nil
}

func (s *Store) UpdateIncident(ctx context.Context, inc incident.Incident) (incident.Incident, error) {
	inc.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET name = $2, type = $3, sub_type = $4, severity = $5, status = $6,
			source = $7, description = $8, occurred_at = $9, updated_at = $10
		WHERE id = $1`,
		inc.ID, inc.Name, string(inc.Type), inc.SubType, string(inc.Severity), string(inc.Status),
		inc.Source, inc.Description, inc.OccurredAt, inc.UpdatedAt)
	if err != nil {
		return incident.Incident{}, fmt.Errorf("update incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return incident.Incident{}, sql.ErrNoRows
	}
	return s.GetIncident(ctx, inc.ID)
}

func (s *Store) GetIncident(ctx context.Context, id string) (incident.Incident, error) {
	var inc incident.Incident
	var t, sev, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, sub_type, severity, status, source, description,
			occurred_at, declared_by, created_at, updated_at
		FROM incidents WHERE id = $1`, id).
		Scan(&inc.ID, &inc.Name, &t, &inc.SubType, &sev, &status, &inc.Source, &inc.Description,
			&inc.OccurredAt, &inc.DeclaredBy, &inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return incident.Incident{}, err
	}
	inc.Type = incident.Type(t)
	inc.Severity = incident.Severity(sev)
	inc.Status = incident.Status(status)
	return inc, nil
}

func (s *Store) ListIncidents(ctx context.Context, status incident.Status, incidentType incident.Type) ([]incident.Incident, error) {
	query := `
		SELECT id, name, type, sub_type, severity, status, source, description,
			occurred_at, declared_by, created_at, updated_at
		FROM incidents`
	var conds []string
	var args []interface{}
	if status != "" {
		args = append(args, string(status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if incidentType != "" {
		args = append(args, string(incidentType))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []incident.Incident
	for rows.Next() {
		var inc incident.Incident
		var t, sev, st string
		if err := rows.Scan(&inc.ID, &inc.Name, &t, &inc.SubType, &sev, &st, &inc.Source, &inc.Description,
			&inc.OccurredAt, &inc.DeclaredBy, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
			return nil, err
		}
		inc.Type = incident.Type(t)
		inc.Severity = incident.Severity(sev)
		inc.Status = incident.Status(st)
		out = append(out, inc)
	}
	return out, rows.Err()
}

func (s *Store) LinkEntity(ctx context.Context, link incident.EntityLink) (incident.EntityLink, error) {
	link.LinkedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incident_entities (incident_id, entity_id, linked_by, linked_at)
		VALUES ($1, $2, $3, $4)`,
		link.IncidentID, link.EntityID, link.LinkedBy, link.LinkedAt)
	if err != nil {
		return incident.EntityLink{}, fmt.Errorf("link entity: %w", err)
	}
	return link, nil
}

func (s *Store) UnlinkEntity(ctx context.Context, incidentID, entityID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM incident_entities WHERE incident_id = $1 AND entity_id = $2`, incidentID, entityID)
	if err != nil {
		return fmt.Errorf("unlink entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) ListIncidentEntities(ctx context.Context, incidentID string) ([]incident.EntityLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT incident_id, entity_id, linked_by, linked_at
		FROM incident_entities WHERE incident_id = $1 ORDER BY linked_at`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list incident entities: %w", err)
	}
	defer rows.Close()

	var out []incident.EntityLink
	for rows.Next() {
		var link incident.EntityLink
		if err := rows.Scan(&link.IncidentID, &link.EntityID, &link.LinkedBy, &link.LinkedAt); err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

func (s *Store) IsEntityLinked(ctx context.Context, incidentID, entityID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM incident_entities WHERE incident_id = $1 AND entity_id = $2`,
		incidentID, entityID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- AssessmentStore ---------------------------------------------------------

func (s *Store) CreateAssessment(ctx context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	data, err := json.Marshal(a.Data)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("marshal data: %w", err)
	}
	needs, err := json.Marshal(a.Needs)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("marshal needs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, entity_id, incident_id, assessor_id, sector, data, needs,
			verification_status, verified_by, verified_at, rejection_reason, client_ref,
			captured_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.EntityID, a.IncidentID, a.AssessorID, string(a.Sector), data, needs,
		string(a.VerificationStatus), a.VerifiedBy, nullTime(a.VerifiedAt), a.RejectionReason,
		a.ClientRef, nullTime(a.CapturedAt), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return a, nil
}

func (s *Store) UpdateAssessment(ctx context.Context, a assessment.RapidAssessment) (assessment.RapidAssessment, error) {
	a.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(a.Data)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("marshal data: %w", err)
	}
	needs, err := json.Marshal(a.Needs)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("marshal needs: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE assessments SET sector = $2, data = $3, needs = $4, verification_status = $5,
			verified_by = $6, verified_at = $7, rejection_reason = $8, updated_at = $9
		WHERE id = $1`,
		a.ID, string(a.Sector), data, needs, string(a.VerificationStatus),
		a.VerifiedBy, nullTime(a.VerifiedAt), a.RejectionReason, a.UpdatedAt)
	if err != nil {
		return assessment.RapidAssessment{}, fmt.Errorf("update assessment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.RapidAssessment{}, sql.ErrNoRows
	}
	return s.GetAssessment(ctx, a.ID)
}

const assessmentColumns = `id, entity_id, incident_id, assessor_id, sector, data, needs,
	verification_status, verified_by, verified_at, rejection_reason, client_ref,
	captured_at, created_at, updated_at`

func scanAssessment(scan func(dest ...interface{}) error) (assessment.RapidAssessment, error) {
	var a assessment.RapidAssessment
	var sector, status string
	var data, needs []byte
	var verifiedAt, capturedAt sql.NullTime
	err := scan(&a.ID, &a.EntityID, &a.IncidentID, &a.AssessorID, &sector, &data, &needs,
		&status, &a.VerifiedBy, &verifiedAt, &a.RejectionReason, &a.ClientRef,
		&capturedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return assessment.RapidAssessment{}, err
	}
	a.Sector = assessment.Sector(sector)
	a.VerificationStatus = assessment.VerificationStatus(status)
	a.VerifiedAt = fromNullTime(verifiedAt)
	a.CapturedAt = fromNullTime(capturedAt)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return assessment.RapidAssessment{}, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	if len(needs) > 0 {
		if err := json.Unmarshal(needs, &a.Needs); err != nil {
			return assessment.RapidAssessment{}, fmt.Errorf("unmarshal needs: %w", err)
		}
	}
	return a, nil
}

func (s *Store) GetAssessment(ctx context.Context, id string) (assessment.RapidAssessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	return scanAssessment(row.Scan)
}

func (s *Store) GetAssessmentByClientRef(ctx context.Context, assessorID, clientRef string) (assessment.RapidAssessment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE assessor_id = $1 AND client_ref = $2`,
		assessorID, clientRef)
	return scanAssessment(row.Scan)
}

func (s *Store) ListAssessments(ctx context.Context, filter storage.AssessmentFilter) ([]assessment.RapidAssessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments`
	var conds []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.IncidentID != "" {
		add("incident_id = $%d", filter.IncidentID)
	}
	if filter.AssessorID != "" {
		add("assessor_id = $%d", filter.AssessorID)
	}
	if filter.Status != "" {
		add("verification_status = $%d", string(filter.Status))
	}
	if filter.Sector != "" {
		add("sector = $%d", string(filter.Sector))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []assessment.RapidAssessment
	for rows.Next() {
		a, err := scanAssessment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- ResponseStore -----------------------------------------------------------

func (s *Store) CreateResponse(ctx context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	items, err := json.Marshal(r.Items)
	if err != nil {
		return response.DeliveryResponse{}, fmt.Errorf("marshal items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responses (id, entity_id, incident_id, commitment_id, responder_id, items,
			status, verification_status, verified_by, verified_at, rejection_reason,
			delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.EntityID, r.IncidentID, r.CommitmentID, r.ResponderID, items,
		string(r.Status), string(r.VerificationStatus), r.VerifiedBy, nullTime(r.VerifiedAt),
		r.RejectionReason, nullTime(r.DeliveredAt), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return response.DeliveryResponse{}, fmt.Errorf("insert response: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateResponse(ctx context.Context, r response.DeliveryResponse) (response.DeliveryResponse, error) {
	r.UpdatedAt = time.Now().UTC()

	items, err := json.Marshal(r.Items)
	if err != nil {
		return response.DeliveryResponse{}, fmt.Errorf("marshal items: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE responses SET items = $2, status = $3, verification_status = $4,
			verified_by = $5, verified_at = $6, rejection_reason = $7, delivered_at = $8, updated_at = $9
		WHERE id = $1`,
		r.ID, items, string(r.Status), string(r.VerificationStatus),
		r.VerifiedBy, nullTime(r.VerifiedAt), r.RejectionReason, nullTime(r.DeliveredAt), r.UpdatedAt)
	if err != nil {
		return response.DeliveryResponse{}, fmt.Errorf("update response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return response.DeliveryResponse{}, sql.ErrNoRows
	}
	return s.GetResponse(ctx, r.ID)
}

const responseColumns = `id, entity_id, incident_id, commitment_id, responder_id, items,
	status, verification_status, verified_by, verified_at, rejection_reason,
	delivered_at, created_at, updated_at`

func scanResponse(scan func(dest ...interface{}) error) (response.DeliveryResponse, error) {
	var r response.DeliveryResponse
	var status, verification string
	var items []byte
	var verifiedAt, deliveredAt sql.NullTime
	err := scan(&r.ID, &r.EntityID, &r.IncidentID, &r.CommitmentID, &r.ResponderID, &items,
		&status, &verification, &r.VerifiedBy, &verifiedAt, &r.RejectionReason,
		&deliveredAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return response.DeliveryResponse{}, err
	}
	r.Status = response.Status(status)
	r.VerificationStatus = assessment.VerificationStatus(verification)
	r.VerifiedAt = fromNullTime(verifiedAt)
	r.DeliveredAt = fromNullTime(deliveredAt)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &r.Items); err != nil {
			return response.DeliveryResponse{}, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	return r, nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (response.DeliveryResponse, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id)
	return scanResponse(row.Scan)
}

func (s *Store) ListResponses(ctx context.Context, filter storage.ResponseFilter) ([]response.DeliveryResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM responses`
	var conds []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.IncidentID != "" {
		add("incident_id = $%d", filter.IncidentID)
	}
	if filter.ResponderID != "" {
		add("responder_id = $%d", filter.ResponderID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.VerificationStatus != "" {
		add("verification_status = $%d", string(filter.VerificationStatus))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []response.DeliveryResponse
	for rows.Next() {
		r, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- CommitmentStore ---------------------------------------------------------

func (s *Store) CreateCommitment(ctx context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	items, err := json.Marshal(c.Items)
	if err != nil {
		return commitment.DonorCommitment{}, fmt.Errorf("marshal items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commitments (id, donor_id, entity_id, incident_id, items, status, note,
			pledged_at, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.DonorID, c.EntityID, c.IncidentID, items, string(c.Status), c.Note,
		c.PledgedAt, nullTime(c.DeliveredAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return commitment.DonorCommitment{}, fmt.Errorf("insert commitment: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCommitment(ctx context.Context, c commitment.DonorCommitment) (commitment.DonorCommitment, error) {
	c.UpdatedAt = time.Now().UTC()

	items, err := json.Marshal(c.Items)
	if err != nil {
		return commitment.DonorCommitment{}, fmt.Errorf("marshal items: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE commitments SET items = $2, status = $3, note = $4, delivered_at = $5, updated_at = $6
		WHERE id = $1`,
		c.ID, items, string(c.Status), c.Note, nullTime(c.DeliveredAt), c.UpdatedAt)
	if err != nil {
		return commitment.DonorCommitment{}, fmt.Errorf("update commitment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commitment.DonorCommitment{}, sql.ErrNoRows
	}
	return s.GetCommitment(ctx, c.ID)
}

const commitmentColumns = `id, donor_id, entity_id, incident_id, items, status, note,
	pledged_at, delivered_at, created_at, updated_at`

func scanCommitment(scan func(dest ...interface{}) error) (commitment.DonorCommitment, error) {
	var c commitment.DonorCommitment
	var status string
	var items []byte
	var deliveredAt sql.NullTime
	err := scan(&c.ID, &c.DonorID, &c.EntityID, &c.IncidentID, &items, &status, &c.Note,
		&c.PledgedAt, &deliveredAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return commitment.DonorCommitment{}, err
	}
	c.Status = commitment.Status(status)
	c.DeliveredAt = fromNullTime(deliveredAt)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &c.Items); err != nil {
			return commitment.DonorCommitment{}, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	return c, nil
}

func (s *Store) GetCommitment(ctx context.Context, id string) (commitment.DonorCommitment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = $1`, id)
	return scanCommitment(row.Scan)
}

func (s *Store) ListCommitments(ctx context.Context, filter storage.CommitmentFilter) ([]commitment.DonorCommitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments`
	var conds []string
	var args []interface{}
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.DonorID != "" {
		add("donor_id = $%d", filter.DonorID)
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.IncidentID != "" {
		add("incident_id = $%d", filter.IncidentID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY pledged_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer rows.Close()

	var out []commitment.DonorCommitment
	for rows.Next() {
		c, err := scanCommitment(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- GapStore ----------------------------------------------------------------

func (s *Store) SaveGapReport(ctx context.Context, report gap.Report) error {
	gaps, err := json.Marshal(report.Gaps)
	if err != nil {
		return fmt.Errorf("marshal gaps: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entity_gap_reports (entity_id, gaps, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET gaps = EXCLUDED.gaps, computed_at = EXCLUDED.computed_at`,
		report.EntityID, gaps, report.ComputedAt)
	if err != nil {
		return fmt.Errorf("save gap report: %w", err)
	}
	return nil
}

func (s *Store) GetGapReport(ctx context.Context, entityID string) (gap.Report, error) {
	var report gap.Report
	var gaps []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_id, gaps, computed_at FROM entity_gap_reports WHERE entity_id = $1`, entityID).
		Scan(&report.EntityID, &gaps, &report.ComputedAt)
	if err != nil {
		return gap.Report{}, err
	}
	if len(gaps) > 0 {
		if err := json.Unmarshal(gaps, &report.Gaps); err != nil {
			return gap.Report{}, fmt.Errorf("unmarshal gaps: %w", err)
		}
	}
	return report, nil
}
