package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"engage/internal/domain"
	"engage/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.StorageError{Op: op, Err: err}
}

func (s *Store) FindUser(ctx context.Context, id string) (domain.User, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, email, COALESCE(name,'') FROM users WHERE id=$1
	`, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, storageErr("find user", err)
	}
	return u, true, nil
}

func (s *Store) CreateCustomer(ctx context.Context, in store.CustomerInsert) error {
	attrs, _ := json.Marshal(in.Attributes)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO customers (id, user_id, name, email, phone, attributes_json, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,false,$7,$7)
	`, in.ID, in.UserID, in.Name, in.Email, nullIfEmpty(in.Phone), attrs, in.Now)
	return storageErr("create customer", err)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (domain.Customer, bool, error) {
	return s.scanCustomer(ctx, `WHERE id=$1 AND NOT deleted`, id)
}

func (s *Store) GetCustomerByEmail(ctx context.Context, userID, email string) (domain.Customer, bool, error) {
	return s.scanCustomer(ctx, `WHERE user_id=$1 AND email=$2 AND NOT deleted`, userID, email)
}

func (s *Store) scanCustomer(ctx context.Context, where string, args ...any) (domain.Customer, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, user_id, name, email, COALESCE(phone,''), attributes_json,
		       total_spend, visit_count, last_visit, deleted, created_at, updated_at
		FROM customers `+where, args...)

	var c domain.Customer
	var attrs []byte
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &attrs,
		&c.TotalSpend, &c.VisitCount, &c.LastVisit, &c.Deleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, false, nil
		}
		return domain.Customer{}, false, storageErr("get customer", err)
	}
	_ = json.Unmarshal(attrs, &c.Attributes)
	return c, true, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, in store.CustomerUpdate) (bool, error) {
	attrs, _ := json.Marshal(in.Attributes)
	ct, err := s.DB.Exec(ctx, `
		UPDATE customers SET name=$2, email=$3, phone=$4, attributes_json=$5, updated_at=$6
		WHERE id=$1 AND NOT deleted
	`, in.ID, in.Name, in.Email, nullIfEmpty(in.Phone), attrs, in.Now)
	if err != nil {
		return false, storageErr("update customer", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) SoftDeleteCustomer(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE customers SET deleted=true, updated_at=$2 WHERE id=$1 AND NOT deleted
	`, id, now)
	if err != nil {
		return false, storageErr("delete customer", err)
	}
	return ct.RowsAffected() > 0, nil
}

// BulkInsertCustomers inserts one batch of an import in a single round trip.
func (s *Store) BulkInsertCustomers(ctx context.Context, ins []store.CustomerInsert) error {
	batch := &pgx.Batch{}
	for _, in := range ins {
		attrs, _ := json.Marshal(in.Attributes)
		batch.Queue(`
			INSERT INTO customers (id, user_id, name, email, phone, attributes_json, deleted, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,false,$7,$7)
		`, in.ID, in.UserID, in.Name, in.Email, nullIfEmpty(in.Phone), attrs, in.Now)
	}
	err := s.DB.SendBatch(ctx, batch).Close()
	return storageErr("bulk insert customers", err)
}

func (s *Store) UpdateCustomerStats(ctx context.Context, in store.CustomerStatsUpdate) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE customers SET total_spend=$2, visit_count=$3, last_visit=$4, updated_at=$5
		WHERE id=$1 AND NOT deleted
	`, in.ID, in.TotalSpend, in.VisitCount, in.LastVisit, in.Now)
	if err != nil {
		return false, storageErr("update customer stats", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) CreateCampaign(ctx context.Context, in store.CampaignInsert) error {
	tpl, _ := json.Marshal(in.Template)
	stats, _ := json.Marshal(domain.DeliveryStats{})
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaigns (id, user_id, name, segment_id, template_json, audience_size, status, stats_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, in.ID, in.UserID, in.Name, nullIfEmpty(in.SegmentID), tpl, in.AudienceSize,
		string(domain.CampaignPending), stats, in.Now)
	return storageErr("create campaign", err)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, user_id, name, COALESCE(segment_id,''), template_json, audience_size,
		       status, stats_json, started_at, completed_at, COALESCE(failure_reason,''), created_at
		FROM campaigns WHERE id=$1
	`, id)

	var c domain.Campaign
	var tpl, stats []byte
	var status string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.SegmentID, &tpl, &c.AudienceSize,
		&status, &stats, &c.StartedAt, &c.CompletedAt, &c.FailureReason, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, storageErr("get campaign", err)
	}
	c.Status = domain.CampaignStatus(status)
	_ = json.Unmarshal(tpl, &c.MessageTemplate)
	_ = json.Unmarshal(stats, &c.DeliveryStats)
	return c, true, nil
}

// ListCampaignRecipients resolves the audience in input order. Segment
// membership is the API collaborator's concern; here the audience is the
// owning user's live customers.
func (s *Store) ListCampaignRecipients(ctx context.Context, campaignID string) ([]store.Recipient, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT c.id, c.name, c.email
		FROM customers c
		JOIN campaigns cp ON cp.user_id = c.user_id
		WHERE cp.id=$1 AND NOT c.deleted
		ORDER BY c.created_at, c.id
	`, campaignID)
	if err != nil {
		return nil, storageErr("list recipients", err)
	}
	defer rows.Close()

	var out []store.Recipient
	for rows.Next() {
		var r store.Recipient
		if err := rows.Scan(&r.CustomerID, &r.Name, &r.Email); err != nil {
			return nil, storageErr("list recipients", err)
		}
		out = append(out, r)
	}
	return out, storageErr("list recipients", rows.Err())
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, in store.CampaignStatusUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns
		SET status=$2,
		    started_at=COALESCE($3, started_at),
		    completed_at=COALESCE($4, completed_at),
		    failure_reason=$5
		WHERE id=$1
	`, in.ID, string(in.Status), in.StartedAt, in.CompletedAt, nullIfEmpty(in.FailureReason))
	return storageErr("update campaign status", err)
}

func (s *Store) UpdateCampaignStats(ctx context.Context, in store.CampaignStatsUpdate) error {
	stats, _ := json.Marshal(in.Stats)
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET stats_json=$2 WHERE id=$1
	`, in.ID, stats)
	return storageErr("update campaign stats", err)
}

func (s *Store) BulkInsertCommunicationLogs(ctx context.Context, logs []domain.CommunicationLog) error {
	batch := &pgx.Batch{}
	for _, l := range logs {
		md, _ := json.Marshal(l.Metadata)
		batch.Queue(`
			INSERT INTO communication_logs (message_id, campaign_id, customer_id, recipient_email, subject, body, status, metadata_json)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, l.MessageID, l.CampaignID, l.CustomerID, l.RecipientEmail, l.Subject, l.Body, string(l.Status), md)
	}
	err := s.DB.SendBatch(ctx, batch).Close()
	return storageErr("bulk insert logs", err)
}

func (s *Store) UpdateCommunicationLogByMessageID(ctx context.Context, in store.LogUpdate) (bool, error) {
	md, _ := json.Marshal(in.Metadata)
	ct, err := s.DB.Exec(ctx, `
		UPDATE communication_logs
		SET status=$2, delivered_at=$3, failure_reason=$4,
		    metadata_json = COALESCE(metadata_json, '{}'::jsonb) || $5::jsonb
		WHERE message_id=$1
	`, in.MessageID, string(in.Status), in.DeliveredAt, nullIfEmpty(in.FailureReason), md)
	if err != nil {
		return false, storageErr("update log", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) UpdateCommunicationLogsByMessageIDs(ctx context.Context, in store.BulkLogUpdate) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE communication_logs
		SET status=$2, delivered_at=$3, failure_reason=$4
		WHERE message_id = ANY($1)
	`, in.MessageIDs, string(in.Status), in.DeliveredAt, nullIfEmpty(in.FailureReason))
	if err != nil {
		return 0, storageErr("bulk update logs", err)
	}
	return ct.RowsAffected(), nil
}

func (s *Store) GetCommunicationLog(ctx context.Context, messageID string) (domain.CommunicationLog, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT message_id, campaign_id, customer_id, recipient_email, subject, body,
		       status, delivered_at, COALESCE(failure_reason,''), metadata_json
		FROM communication_logs WHERE message_id=$1
	`, messageID)

	var l domain.CommunicationLog
	var status string
	var md []byte
	err := row.Scan(&l.MessageID, &l.CampaignID, &l.CustomerID, &l.RecipientEmail,
		&l.Subject, &l.Body, &status, &l.DeliveredAt, &l.FailureReason, &md)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CommunicationLog{}, false, nil
		}
		return domain.CommunicationLog{}, false, storageErr("get log", err)
	}
	l.Status = domain.LogStatus(status)
	_ = json.Unmarshal(md, &l.Metadata)
	return l, true, nil
}

// CountCommunicationLogsByStatus is the read-time truth behind campaign
// delivery breakdowns; per-recipient status keeps updating via receipts after
// the campaign's own stats are frozen.
func (s *Store) CountCommunicationLogsByStatus(ctx context.Context, campaignID string) (map[domain.LogStatus]int, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT status, COUNT(*) FROM communication_logs WHERE campaign_id=$1 GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, storageErr("count logs", err)
	}
	defer rows.Close()

	out := make(map[domain.LogStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("count logs", err)
		}
		out[domain.LogStatus(status)] = n
	}
	return out, storageErr("count logs", rows.Err())
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
