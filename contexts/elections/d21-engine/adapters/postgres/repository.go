package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"d21vote/contexts/elections/d21-engine/domain/entities"
	domainerrors "d21vote/contexts/elections/d21-engine/domain/errors"
	"d21vote/contexts/elections/d21-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate creates or updates the engine tables.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	err := r.db.WithContext(ctx).AutoMigrate(
		&electionModel{},
		&candidateModel{},
		&voterRecordModel{},
		&idempotencyModel{},
		&outboxModel{},
	)
	if err != nil {
		return r.logError("election_repo_auto_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateElection(ctx context.Context, election entities.Election, events ...ports.EventEnvelope) error {
	row := electionModelFromEntity(election)
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		create := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "election_id"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return r.logError("election_repo_create_election_failed", create.Error,
				"election_id", row.ElectionID,
			)
		}
		if create.RowsAffected == 0 {
			return domainerrors.ErrElectionExists
		}
		for _, event := range events {
			if err := r.appendOutbox(ctx, db, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCandidates(ctx context.Context, electionID string) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("candidate_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_candidates_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetVoterRecord(ctx context.Context, electionID string, voter string) (entities.VoterRecord, bool, error) {
	return r.getVoterRecord(ctx, r.db, strings.TrimSpace(electionID), strings.TrimSpace(voter))
}

func (r *Repository) getVoterRecord(ctx context.Context, db *gorm.DB, electionID string, voter string) (entities.VoterRecord, bool, error) {
	var row voterRecordModel
	err := db.WithContext(ctx).
		Where("election_id = ? AND voter = ?", electionID, voter).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoterRecord{}, false, nil
		}
		return entities.VoterRecord{}, false, r.logError("election_repo_get_voter_record_failed", err,
			"election_id", electionID,
			"voter", voter,
		)
	}
	return row.toEntity(), true, nil
}

// WithElection runs fn inside one database transaction holding a row lock on
// the election, so units of work on the same election execute one at a time.
func (r *Repository) WithElection(ctx context.Context, electionID string, fn func(tx ports.ElectionTx) error) error {
	electionID = strings.TrimSpace(electionID)
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row electionModel
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("election_id = ?", electionID).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrElectionNotFound
			}
			return r.logError("election_repo_lock_election_failed", err, "election_id", electionID)
		}
		return fn(&electionTx{repo: r, db: db, election: row.toEntity()})
	})
}

// Claim inserts a pending row with ON CONFLICT DO NOTHING. An expired row is
// deleted and the insert retried once.
func (r *Repository) Claim(ctx context.Context, record ports.IdempotencyRecord, now time.Time) (ports.IdempotencyRecord, bool, error) {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	for attempt := 0; attempt < 2; attempt++ {
		create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_claim_failed", create.Error, "idempotency_key", row.Key)
		}
		if create.RowsAffected > 0 {
			return ports.IdempotencyRecord{}, false, nil
		}

		var existing idempotencyModel
		err := r.db.WithContext(ctx).Where("key = ?", row.Key).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
		}
		if !existing.ExpiresAt.UTC().After(now.UTC()) {
			if err := r.db.WithContext(ctx).
				Where("key = ? AND expires_at <= ?", row.Key, now.UTC()).
				Delete(&idempotencyModel{}).Error; err != nil {
				return ports.IdempotencyRecord{}, false, r.logError("election_repo_idempotency_expire_delete_failed", err, "idempotency_key", row.Key)
			}
			continue
		}
		switch {
		case existing.RequestHash != row.RequestHash:
			return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyConflict
		case existing.ResultID == "":
			return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyInFlight
		}
		return ports.IdempotencyRecord{
			Key:         existing.Key,
			RequestHash: existing.RequestHash,
			ResultID:    existing.ResultID,
			ExpiresAt:   existing.ExpiresAt.UTC(),
		}, true, nil
	}
	return ports.IdempotencyRecord{}, false, domainerrors.ErrIdempotencyInFlight
}

// Put completes this request's claim, or inserts the row when no claim was
// taken.
func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		ResultID:    strings.TrimSpace(record.ResultID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	update := r.db.WithContext(ctx).
		Model(&idempotencyModel{}).
		Where("key = ? AND request_hash = ? AND (result_id = '' OR result_id = ?)", row.Key, row.RequestHash, row.ResultID).
		Updates(map[string]any{
			"result_id":  row.ResultID,
			"expires_at": row.ExpiresAt,
		})
	if update.Error != nil {
		return r.logError("election_repo_idempotency_put_failed", update.Error, "idempotency_key", row.Key)
	}
	if update.RowsAffected > 0 {
		return nil
	}

	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

func (r *Repository) Release(ctx context.Context, key string, requestHash string) error {
	err := r.db.WithContext(ctx).
		Where("key = ? AND request_hash = ? AND result_id = ''", strings.TrimSpace(key), strings.TrimSpace(requestHash)).
		Delete(&idempotencyModel{}).
		Error
	if err != nil {
		return r.logError("election_repo_idempotency_release_failed", err, "idempotency_key", strings.TrimSpace(key))
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("seq ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) appendOutbox(ctx context.Context, db *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("election_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("election_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("election_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "elections/d21-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

// electionTx writes straight into the surrounding transaction; gorm rolls it
// back when the callback returns an error.
type electionTx struct {
	repo     *Repository
	db       *gorm.DB
	election entities.Election
}

func (tx *electionTx) Election() entities.Election {
	return tx.election
}

func (tx *electionTx) GetVoterRecord(ctx context.Context, voter string) (entities.VoterRecord, bool, error) {
	return tx.repo.getVoterRecord(ctx, tx.db, tx.election.ElectionID, strings.TrimSpace(voter))
}

func (tx *electionTx) SaveElection(ctx context.Context, election entities.Election) error {
	if election.ElectionID != tx.election.ElectionID {
		return domainerrors.ErrConflict
	}
	row := electionModelFromEntity(election)
	result := tx.db.WithContext(ctx).
		Model(&electionModel{}).
		Where("election_id = ?", row.ElectionID).
		Updates(map[string]any{
			"candidate_count": row.CandidateCount,
			"voter_count":     row.VoterCount,
			"is_finalized":    row.IsFinalized,
			"finalized_at":    row.FinalizedAt,
			"updated_at":      row.UpdatedAt,
		})
	if result.Error != nil {
		return tx.repo.logError("election_repo_save_election_failed", result.Error,
			"election_id", row.ElectionID,
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrElectionNotFound
	}
	tx.election = election
	return nil
}

func (tx *electionTx) CreateCandidate(ctx context.Context, candidate entities.Candidate) error {
	candidate.ElectionID = tx.election.ElectionID
	row := candidateModelFromEntity(candidate)
	create := tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "election_id"}, {Name: "candidate_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return tx.repo.logError("election_repo_create_candidate_failed", create.Error,
			"election_id", row.ElectionID,
			"candidate_id", row.CandidateID,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (tx *electionTx) CreateVoterRecord(ctx context.Context, record entities.VoterRecord) error {
	record.ElectionID = tx.election.ElectionID
	row := voterRecordModelFromEntity(record)
	create := tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "election_id"}, {Name: "voter"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyVoted
		}
		return tx.repo.logError("election_repo_create_voter_record_failed", create.Error,
			"election_id", row.ElectionID,
			"voter", row.Voter,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyVoted
	}
	return nil
}

func (tx *electionTx) AddCandidateVotes(ctx context.Context, candidateID uint8, plus uint64, minus uint64) error {
	result := tx.db.WithContext(ctx).
		Model(&candidateModel{}).
		Where("election_id = ? AND candidate_id = ?", tx.election.ElectionID, int16(candidateID)).
		Updates(map[string]any{
			"plus_votes":  gorm.Expr("plus_votes + ?", int64(plus)),
			"minus_votes": gorm.Expr("minus_votes + ?", int64(minus)),
		})
	if result.Error != nil {
		return tx.repo.logError("election_repo_add_candidate_votes_failed", result.Error,
			"election_id", tx.election.ElectionID,
			"candidate_id", candidateID,
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCandidateNotFound
	}
	return nil
}

func (tx *electionTx) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	return tx.repo.appendOutbox(ctx, tx.db, envelope)
}

// SystemClock is the wall clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
