package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"metronix/internal/cache"
	"metronix/internal/config"
	"metronix/internal/models"
	"metronix/internal/observability"
	"metronix/internal/storage"
	contextutils "metronix/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// Progress log notes written by the lifecycle actions
const (
	NoteAssigned       = "Complaint assigned to solver"
	NoteWorkStarted    = "Work started on complaint"
	NoteResolved       = "Complaint resolved"
	noteStartedEmail   = "Work has started on your complaint"
	noteResolvedEmail  = "Your complaint has been resolved"
	noteRequiredReason = "Note content is required"
)

// Attachment is one uploaded file on a new complaint
type Attachment struct {
	Filename string
	Data     []byte
}

// SubmitComplaintInput is what a citizen sends to file a complaint.
// Category and Priority are raw tokens; Priority defaults to NORMAL.
type SubmitComplaintInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Location    string
	Lat         *float64
	Lng         *float64
	Attachments []Attachment
}

// ComplaintServiceInterface is the complaint lifecycle engine
type ComplaintServiceInterface interface {
	Submit(ctx context.Context, citizenID int, input SubmitComplaintInput) (*models.Complaint, error)
	Assign(ctx context.Context, complaintID, solverID int) (*models.Complaint, error)
	Start(ctx context.Context, complaintID, solverID int) (*models.Complaint, error)
	Resolve(ctx context.Context, complaintID, solverID int, note string) (*models.Complaint, error)
	AddNote(ctx context.Context, complaintID int, actor models.Actor, note string) (*models.ProgressLog, error)
	AdminOverride(ctx context.Context, complaintID int, actor models.Actor, update models.ComplaintUpdate) (*models.Complaint, error)
	GetComplaintDetail(ctx context.Context, complaintID int, actor models.Actor) (*models.ComplaintDetail, error)
	ListForCitizen(ctx context.Context, citizenID int) ([]models.ComplaintSummary, error)
	SolverQueues(ctx context.Context, solverID int) (*models.SolverQueues, error)
}

// ComplaintService enforces the role-gated transitions. Every transition runs in
// one transaction covering the complaint update and its progress log entry;
// notifications go out after commit and never fail the operation.
type ComplaintService struct {
	db       *sql.DB
	cfg      *config.Config
	users    UserServiceInterface
	notifier NotificationServiceInterface
	store    storage.AttachmentStore
	cache    cache.Cache
	metrics  *observability.LifecycleMetrics
	logger   *observability.Logger
	now      func() time.Time
}

var _ ComplaintServiceInterface = (*ComplaintService)(nil)

// NewComplaintService creates a ComplaintService. A nil cache disables report invalidation.
func NewComplaintService(
	db *sql.DB,
	cfg *config.Config,
	users UserServiceInterface,
	notifier NotificationServiceInterface,
	store storage.AttachmentStore,
	reportCache cache.Cache,
	metrics *observability.LifecycleMetrics,
	logger *observability.Logger,
) *ComplaintService {
	if reportCache == nil {
		reportCache = cache.NopCache{}
	}
	return &ComplaintService{
		db:       db,
		cfg:      cfg,
		users:    users,
		notifier: notifier,
		store:    store,
		cache:    reportCache,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit files a new complaint for a citizen. Attachments are checked against
// the size limit and image type before any of them is stored, and stored
// before the insert.
func (s *ComplaintService) Submit(ctx context.Context, citizenID int, input SubmitComplaintInput) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "submit", observability.AttributeUserID(citizenID))
	defer observability.FinishSpan(span, &err)

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "title and description are required")
	}

	category, ok := models.ParseCategory(input.Category)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid category: %q", input.Category)
	}
	priority := models.PriorityNormal
	if strings.TrimSpace(input.Priority) != "" {
		if priority, ok = models.ParsePriority(input.Priority); !ok {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid priority: %q", input.Priority)
		}
	}
	if err = validateCoordinates(input.Lat, input.Lng); err != nil {
		return nil, err
	}
	if err = s.checkAttachments(input.Attachments); err != nil {
		return nil, err
	}

	citizen, err := s.users.GetUserByID(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	if citizen.Role != models.RoleCitizen {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "only citizens can submit complaints")
	}

	images := make([]string, 0, len(input.Attachments))
	for _, a := range input.Attachments {
		ref, storeErr := s.store.Store(ctx, a.Data, filepath.Ext(a.Filename))
		if storeErr != nil {
			return nil, storeErr
		}
		images = append(images, ref)
	}

	now := s.now()
	complaint := &models.Complaint{
		Title:       title,
		Description: description,
		Category:    category,
		Priority:    priority,
		Status:      models.StatusSubmitted,
		Location:    strings.TrimSpace(input.Location),
		Lat:         models.NullFloat64FromPointer(input.Lat),
		Lng:         models.NullFloat64FromPointer(input.Lng),
		Images:      images,
		CitizenID:   citizenID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO complaints (title, description, category, priority, status, location, lat, lng, images, citizen_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		complaint.Title, complaint.Description, string(complaint.Category), string(complaint.Priority), string(complaint.Status),
		complaint.Location, complaint.Lat, complaint.Lng, pq.Array(complaint.Images), complaint.CitizenID, now, now,
	).Scan(&complaint.ID)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to create complaint: %v", err)
	}

	span.SetAttributes(observability.AttributeComplaintID(complaint.ID), attribute.Int("complaint.images", len(images)))
	s.logger.Info(ctx, "Complaint submitted", map[string]interface{}{
		"complaint_id": complaint.ID,
		"citizen_id":   citizenID,
		"category":     string(category),
		"images":       len(images),
	})
	s.metrics.RecordSubmission(ctx, string(category))
	s.invalidateReports(ctx)
	s.notifier.NotifySubmitted(ctx, complaint, citizen)

	return complaint, nil
}

// Assign gives an unassigned complaint to a solver. Re-assigning to the same
// solver is a no-op; a different solver or a resolved complaint is a conflict.
func (s *ComplaintService) Assign(ctx context.Context, complaintID, solverID int) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "assign",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(solverID))
	defer observability.FinishSpan(span, &err)

	var complaint *models.Complaint
	changed := false
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireRole(ctx, tx, solverID, models.RoleSolver); err != nil {
			return err
		}

		c, err := lockComplaint(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		complaint = c

		if c.Status == models.StatusResolved {
			return contextutils.WrapErrorf(contextutils.ErrConflict, "complaint %d is already resolved", complaintID)
		}
		if c.HasSolver() {
			if c.IsAssignedTo(solverID) {
				return nil
			}
			return contextutils.WrapErrorf(contextutils.ErrConflict, "complaint %d is already assigned to another solver", complaintID)
		}

		now := s.now()
		res, err := tx.ExecContext(ctx,
			`UPDATE complaints SET solver_id = $1, status = $2, updated_at = $3 WHERE id = $4 AND solver_id IS NULL`,
			solverID, string(models.StatusAssigned), now, complaintID)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to assign complaint: %v", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return contextutils.WrapErrorf(contextutils.ErrConflict, "complaint %d was assigned concurrently", complaintID)
		}

		if _, err := insertProgressLog(ctx, tx, complaintID, solverID, models.StatusAssigned, NoteAssigned, now); err != nil {
			return err
		}

		c.SolverID = sql.NullInt64{Int64: int64(solverID), Valid: true}
		c.Status = models.StatusAssigned
		c.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		s.logger.Debug(ctx, "Complaint already assigned to solver", map[string]interface{}{
			"complaint_id": complaintID, "solver_id": solverID,
		})
		return complaint, nil
	}

	s.afterTransition(ctx, complaint, "assign")
	if solver, err := s.users.GetUserByID(ctx, solverID); err == nil {
		s.notifier.NotifyAssigned(ctx, complaint, solver)
	} else {
		s.logger.Warn(ctx, "Could not load solver for assignment email", map[string]interface{}{
			"complaint_id": complaintID, "solver_id": solverID, "error": err.Error(),
		})
	}
	return complaint, nil
}

// Start records that the assigned solver began work. The status stays ASSIGNED.
func (s *ComplaintService) Start(ctx context.Context, complaintID, solverID int) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "start",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(solverID))
	defer observability.FinishSpan(span, &err)

	var complaint *models.Complaint
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := s.lockForAssignedSolver(ctx, tx, complaintID, solverID)
		if err != nil {
			return err
		}
		complaint = c
		_, err = insertProgressLog(ctx, tx, complaintID, solverID, models.StatusAssigned, NoteWorkStarted, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, complaint, "start")
	s.notifyCitizen(ctx, complaint, complaint.Status, noteStartedEmail)
	return complaint, nil
}

// Resolve closes a complaint. Only the assigned solver may resolve it.
func (s *ComplaintService) Resolve(ctx context.Context, complaintID, solverID int, note string) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "resolve",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(solverID))
	defer observability.FinishSpan(span, &err)

	note = strings.TrimSpace(note)
	logNote := note
	if logNote == "" {
		logNote = NoteResolved
	}

	var complaint *models.Complaint
	var previous models.Status
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := s.lockForAssignedSolver(ctx, tx, complaintID, solverID)
		if err != nil {
			return err
		}
		complaint = c
		previous = c.Status

		now := s.now()
		if _, err := tx.ExecContext(ctx, `UPDATE complaints SET status = $1, updated_at = $2 WHERE id = $3`,
			string(models.StatusResolved), now, complaintID); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to resolve complaint: %v", err)
		}
		if _, err := insertProgressLog(ctx, tx, complaintID, solverID, models.StatusResolved, logNote, now); err != nil {
			return err
		}
		c.Status = models.StatusResolved
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	emailNote := note
	if emailNote == "" {
		emailNote = noteResolvedEmail
	}
	s.afterTransition(ctx, complaint, "resolve")
	s.notifyCitizen(ctx, complaint, previous, emailNote)
	return complaint, nil
}

// AddNote appends a free-text entry at the complaint's current status.
// Solvers may only annotate complaints assigned to them; citizens may not annotate.
func (s *ComplaintService) AddNote(ctx context.Context, complaintID int, actor models.Actor, note string) (result0 *models.ProgressLog, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "add_note",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(actor.UserID),
		observability.AttributeRole(string(actor.Role)))
	defer observability.FinishSpan(span, &err)

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, noteRequiredReason)
	}
	if actor.Role != models.RoleSolver && actor.Role != models.RoleAdmin {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "only solvers and administrators can add notes")
	}

	var entry *models.ProgressLog
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := lockComplaint(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if actor.Role == models.RoleSolver && !c.IsAssignedTo(actor.UserID) {
			return contextutils.WrapError(contextutils.ErrForbidden, "complaint is not assigned to you")
		}
		entry, err = insertProgressLog(ctx, tx, complaintID, actor.UserID, c.Status, note, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(ctx, "add_note")
	return entry, nil
}

// AdminOverride applies any subset of status, priority, solver and department
// directly, bypassing the solver state machine. A change appends one log entry.
func (s *ComplaintService) AdminOverride(ctx context.Context, complaintID int, actor models.Actor, update models.ComplaintUpdate) (result0 *models.Complaint, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "admin_override",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(actor.UserID))
	defer observability.FinishSpan(span, &err)

	if !actor.IsAdmin() {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "administrator role required")
	}
	if update.IsEmpty() {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "no changes supplied")
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid status: %q", *update.Status)
	}
	if update.Priority != nil && !update.Priority.IsValid() {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid priority: %q", *update.Priority)
	}
	if update.SolverID != nil && update.ClearSolver {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "cannot both set and clear the solver")
	}

	var complaint *models.Complaint
	var previous models.Status
	var changes []string
	newSolver := false
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if update.SolverID != nil {
			if err := requireRole(ctx, tx, *update.SolverID, models.RoleSolver); err != nil {
				return err
			}
		}
		if update.DepartmentID != nil {
			if err := requireDepartment(ctx, tx, *update.DepartmentID); err != nil {
				return err
			}
		}

		c, err := lockComplaint(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		complaint = c
		previous = c.Status

		if update.Status != nil && *update.Status != c.Status {
			changes = append(changes, fmt.Sprintf("status %s -> %s", c.Status, *update.Status))
			c.Status = *update.Status
		}
		if update.Priority != nil && *update.Priority != c.Priority {
			changes = append(changes, fmt.Sprintf("priority %s -> %s", c.Priority, *update.Priority))
			c.Priority = *update.Priority
		}
		if update.SolverID != nil && !c.IsAssignedTo(*update.SolverID) {
			changes = append(changes, fmt.Sprintf("solver %s -> %d", formatNullID(c.SolverID), *update.SolverID))
			c.SolverID = sql.NullInt64{Int64: int64(*update.SolverID), Valid: true}
			newSolver = true
		}
		if update.ClearSolver && c.HasSolver() {
			changes = append(changes, fmt.Sprintf("solver %s -> none", formatNullID(c.SolverID)))
			c.SolverID = sql.NullInt64{}
		}
		if update.DepartmentID != nil && (!c.DepartmentID.Valid || int(c.DepartmentID.Int64) != *update.DepartmentID) {
			changes = append(changes, fmt.Sprintf("department %s -> %d", formatNullID(c.DepartmentID), *update.DepartmentID))
			c.DepartmentID = sql.NullInt64{Int64: int64(*update.DepartmentID), Valid: true}
		}

		if len(changes) == 0 {
			return nil
		}

		now := s.now()
		_, err = tx.ExecContext(ctx,
			`UPDATE complaints SET status = $1, priority = $2, solver_id = $3, department_id = $4, updated_at = $5 WHERE id = $6`,
			string(c.Status), string(c.Priority), c.SolverID, c.DepartmentID, now, complaintID)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to update complaint: %v", err)
		}
		c.UpdatedAt = now

		note := "Admin override: " + strings.Join(changes, ", ")
		_, err = insertProgressLog(ctx, tx, complaintID, actor.UserID, c.Status, note, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return complaint, nil
	}

	s.logger.Info(ctx, "Complaint overridden by administrator", map[string]interface{}{
		"complaint_id": complaintID,
		"admin_id":     actor.UserID,
		"changes":      changes,
	})
	s.afterTransition(ctx, complaint, "admin_override")

	// At most one email: the newly assigned solver takes precedence over the citizen.
	switch {
	case newSolver:
		if solver, err := s.users.GetUserByID(ctx, int(complaint.SolverID.Int64)); err == nil {
			s.notifier.NotifyAssigned(ctx, complaint, solver)
		}
	case complaint.Status != previous:
		s.notifyCitizen(ctx, complaint, previous, "")
	}
	return complaint, nil
}

// GetComplaintDetail returns the complaint with its people, department and
// progress log, newest entry first. Citizens see their own complaints, solvers
// the ones assigned to them, administrators everything.
func (s *ComplaintService) GetComplaintDetail(ctx context.Context, complaintID int, actor models.Actor) (result0 *models.ComplaintDetail, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "get_complaint_detail",
		observability.AttributeComplaintID(complaintID), observability.AttributeUserID(actor.UserID))
	defer observability.FinishSpan(span, &err)

	detail := &models.ComplaintDetail{}
	c := &detail.Complaint
	var citizen models.UserSummary
	var solverID sql.NullInt64
	var solverName, solverEmail sql.NullString
	var deptID sql.NullInt64
	var deptName sql.NullString
	var deptKeywords pq.StringArray
	var deptCreated sql.NullTime

	targets := append(complaintScanTargets(c),
		&citizen.ID, &citizen.Name, &citizen.Email,
		&solverID, &solverName, &solverEmail,
		&deptID, &deptName, &deptKeywords, &deptCreated,
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.description, c.category, c.priority, c.status, c.location, c.lat, c.lng, c.images,
			c.citizen_id, c.department_id, c.solver_id, c.created_at, c.updated_at,
			cu.id, cu.name, cu.email,
			su.id, su.name, su.email,
			d.id, d.name, d.keywords, d.created_at
		FROM complaints c
		JOIN users cu ON cu.id = c.citizen_id
		LEFT JOIN users su ON su.id = c.solver_id
		LEFT JOIN departments d ON d.id = c.department_id
		WHERE c.id = $1`, complaintID).Scan(targets...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "complaint %d not found", complaintID)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load complaint: %v", err)
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleCitizen:
		if c.CitizenID != actor.UserID {
			return nil, contextutils.WrapError(contextutils.ErrForbidden, "access denied")
		}
	case models.RoleSolver:
		if !c.IsAssignedTo(actor.UserID) {
			return nil, contextutils.WrapError(contextutils.ErrForbidden, "access denied")
		}
	default:
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "access denied")
	}

	detail.Citizen = &citizen
	detail.Solver = userSummaryFromNullable(solverID, solverName, solverEmail)
	if deptID.Valid {
		detail.Department = &models.Department{
			ID: int(deptID.Int64), Name: deptName.String, Keywords: deptKeywords, CreatedAt: deptCreated.Time,
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.complaint_id, l.user_id, l.status, l.note, l.created_at, u.name, u.role
		FROM progress_logs l
		JOIN users u ON u.id = l.user_id
		WHERE l.complaint_id = $1
		ORDER BY l.created_at DESC, l.id DESC`, complaintID)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load progress log: %v", err)
	}
	defer func() { _ = rows.Close() }()

	detail.Logs = []models.ProgressEntry{}
	for rows.Next() {
		var e models.ProgressEntry
		if err = rows.Scan(&e.ID, &e.ComplaintID, &e.UserID, &e.Status, &e.Note, &e.CreatedAt, &e.UserName, &e.UserRole); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan progress log: %v", err)
		}
		detail.Logs = append(detail.Logs, e)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load progress log: %v", err)
	}

	return detail, nil
}

// ListForCitizen returns a citizen's complaints, newest first
func (s *ComplaintService) ListForCitizen(ctx context.Context, citizenID int) (result0 []models.ComplaintSummary, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "list_for_citizen", observability.AttributeUserID(citizenID))
	defer observability.FinishSpan(span, &err)

	q := &summaryQuery{}
	q.where("c.citizen_id = ?", citizenID)
	return q.run(ctx, s.db)
}

// SolverQueues returns the available and assigned queues for a solver
func (s *ComplaintService) SolverQueues(ctx context.Context, solverID int) (result0 *models.SolverQueues, err error) {
	ctx, span := observability.TraceComplaintFunction(ctx, "solver_queues", observability.AttributeUserID(solverID))
	defer observability.FinishSpan(span, &err)

	available := &summaryQuery{orderBy: priorityRankSQL + " DESC, c.created_at ASC, c.id ASC"}
	available.where("c.solver_id IS NULL").where("c.status <> ?", string(models.StatusResolved))
	availableList, err := available.run(ctx, s.db)
	if err != nil {
		return nil, err
	}

	assigned := &summaryQuery{orderBy: "c.updated_at DESC, c.id DESC"}
	assigned.where("c.solver_id = ?", solverID)
	assignedList, err := assigned.run(ctx, s.db)
	if err != nil {
		return nil, err
	}

	return &models.SolverQueues{Available: availableList, Assigned: assignedList}, nil
}

func (s *ComplaintService) checkAttachments(attachments []Attachment) error {
	maxFiles := s.cfg.Uploads.MaxFiles
	if maxFiles <= 0 {
		maxFiles = config.MaxAttachmentsPerComplaint
	}
	if len(attachments) > maxFiles {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "at most %d attachments are allowed", maxFiles)
	}
	limit := s.store.MaxBytes()
	for _, a := range attachments {
		if int64(len(a.Data)) > limit {
			return contextutils.WrapErrorf(contextutils.ErrFileTooLarge,
				"file %s exceeds the %d byte limit", a.Filename, limit)
		}
	}
	for _, a := range attachments {
		if err := storage.ValidateImage(a.Filename, a.Data); err != nil {
			return err
		}
	}
	return nil
}

// lockForAssignedSolver locks the complaint and checks the caller is its solver
// and that it is still open.
func (s *ComplaintService) lockForAssignedSolver(ctx context.Context, tx *sql.Tx, complaintID, solverID int) (*models.Complaint, error) {
	c, err := lockComplaint(ctx, tx, complaintID)
	if err != nil {
		return nil, err
	}
	if !c.IsAssignedTo(solverID) {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "complaint is not assigned to you")
	}
	if c.Status == models.StatusResolved {
		return nil, contextutils.WrapErrorf(contextutils.ErrConflict, "complaint %d is already resolved", complaintID)
	}
	return c, nil
}

func (s *ComplaintService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to commit transaction: %v", err)
	}
	return nil
}

func (s *ComplaintService) afterTransition(ctx context.Context, c *models.Complaint, action string) {
	s.logger.Info(ctx, "Complaint transition applied", map[string]interface{}{
		"complaint_id": c.ID,
		"action":       action,
		"status":       string(c.Status),
	})
	s.metrics.RecordTransition(ctx, action)
	s.invalidateReports(ctx)
}

func (s *ComplaintService) notifyCitizen(ctx context.Context, c *models.Complaint, previous models.Status, note string) {
	citizen, err := s.users.GetUserByID(ctx, c.CitizenID)
	if err != nil {
		s.logger.Warn(ctx, "Could not load citizen for status email", map[string]interface{}{
			"complaint_id": c.ID, "citizen_id": c.CitizenID, "error": err.Error(),
		})
		return
	}
	s.notifier.NotifyStatusChange(ctx, c, citizen, previous, note)
}

// invalidateReports runs after commit. Bumping the generation first makes any
// report computed from pre-commit data unreachable even if it is stored later.
func (s *ComplaintService) invalidateReports(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, reportGenerationKey); err != nil {
		s.logger.Warn(ctx, "Failed to bump report cache generation", map[string]interface{}{"error": err.Error()})
	}
	if err := s.cache.DeletePrefix(ctx, reportCachePrefix); err != nil {
		s.logger.Warn(ctx, "Failed to invalidate report cache", map[string]interface{}{"error": err.Error()})
	}
}

func lockComplaint(ctx context.Context, tx *sql.Tx, complaintID int) (*models.Complaint, error) {
	c, err := scanComplaint(tx.QueryRowContext(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, complaintID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "complaint %d not found", complaintID)
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load complaint: %v", err)
	}
	return c, nil
}

func insertProgressLog(ctx context.Context, tx *sql.Tx, complaintID, userID int, status models.Status, note string, at time.Time) (*models.ProgressLog, error) {
	entry := &models.ProgressLog{ComplaintID: complaintID, UserID: userID, Status: status, Note: note, CreatedAt: at}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO progress_logs (complaint_id, user_id, status, note, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		complaintID, userID, string(status), note, at,
	).Scan(&entry.ID)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to write progress log: %v", err)
	}
	return entry, nil
}

// requireRole checks that userID exists and holds role
func requireRole(ctx context.Context, tx *sql.Tx, userID int, role models.Role) error {
	var actual models.Role
	err := tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "user %d does not exist", userID)
	}
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load user role: %v", err)
	}
	if actual != role {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "user %d is not a %s", userID, strings.ToLower(string(role)))
	}
	return nil
}

func requireDepartment(ctx context.Context, tx *sql.Tx, departmentID int) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM departments WHERE id = $1)`, departmentID).Scan(&exists); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to check department: %v", err)
	}
	if !exists {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "department %d does not exist", departmentID)
	}
	return nil
}

func validateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "lat and lng must be supplied together")
	}
	if lat != nil && (!isFinite(*lat) || !isFinite(*lng)) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "coordinates must be finite numbers")
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *lng < -180 || *lng > 180) {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "coordinates out of range")
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatNullID(id sql.NullInt64) string {
	if !id.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", id.Int64)
}
