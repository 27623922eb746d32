package models

import "time"

// OrganizationModel holds the billing unit every project and bot rolls up
// to. Centicredits is the authoritative balance; CreditTransactionModel rows
// are the append-only history that explains how it got there.
type OrganizationModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	Name           string `gorm:"size:255"`
	Centicredits   int64  `gorm:"not null;default:0"`
	BillingEnabled bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OrganizationModel) TableName() string { return "organizations" }

// ProjectModel scopes bots and webhook subscriptions under an organization.
type ProjectModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	OrganizationID string `gorm:"size:32;index;not null"`
	Name           string `gorm:"size:255"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ProjectModel) TableName() string { return "projects" }

// BotModel is the row the engine's optimistic-concurrency loop reads,
// mutates and compare-and-swaps. Version is bumped on every successful
// CompareAndSwapState; a write that targets a stale Version affects zero
// rows and is reported back as a version conflict.
//
// ProjectID and DeduplicationKey share the uq_bot_dedup_key composite index,
// partial on "not a post-meeting state" (FATAL_ERROR=7, ENDED=9,
// DATA_DELETED=10): at most one non-post-meeting bot per project may claim a
// given deduplication key, mirroring the source system's condition on its
// project+deduplication_key constraint.
type BotModel struct {
	ID                      string  `gorm:"primaryKey;size:32"`
	ObjectID                string  `gorm:"uniqueIndex;size:32;not null"`
	ProjectID               string  `gorm:"size:32;index;not null;uniqueIndex:uq_bot_dedup_key,priority:1,where:deduplication_key IS NOT NULL AND state NOT IN (7,9,10)"`
	OrganizationID          string  `gorm:"size:32;index;not null"`
	State                   int     `gorm:"not null"`
	Version                 int     `gorm:"not null;default:1"`
	RecordingType           int     `gorm:"not null;default:1"`
	JoinAt                  *time.Time
	FirstHeartbeatTimestamp *int64
	LastHeartbeatTimestamp  *int64
	DeduplicationKey        *string `gorm:"size:1024;uniqueIndex:uq_bot_dedup_key,priority:2,where:deduplication_key IS NOT NULL AND state NOT IN (7,9,10)"`
	SettingsJSON            string  `gorm:"type:text"` // serialized transcription.ProviderSettings, among others
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (BotModel) TableName() string { return "bots" }

// BotEventModel is the durable, append-only audit trail of every committed
// transition.
type BotEventModel struct {
	ID                        string `gorm:"primaryKey;size:32"`
	BotID                     string `gorm:"size:32;index;not null"`
	Kind                      int    `gorm:"not null"`
	Subkind                   *int
	OldState                  int       `gorm:"not null"`
	NewState                  int       `gorm:"not null"`
	MetadataJSON              string    `gorm:"type:text"`
	RequestedBotActionTakenAt *time.Time
	CreatedAt                 time.Time `gorm:"index"`
}

func (BotEventModel) TableName() string { return "bot_events" }

// RecordingModel is a bot's nested recording sub-state-machine row.
type RecordingModel struct {
	ID                 string `gorm:"primaryKey;size:32"`
	ObjectID           string `gorm:"uniqueIndex;size:32;not null"`
	BotID              string `gorm:"size:32;index;not null"`
	State              int    `gorm:"not null;default:1"`
	TranscriptionState int    `gorm:"not null;default:1"`
	HasFile            bool   `gorm:"not null;default:false"`
	FailureReasonsJSON string `gorm:"type:text"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (RecordingModel) TableName() string { return "recordings" }

// UtteranceModel is one transcribed (or still-transcribing, or failed)
// speech segment belonging to a recording's transcription.
type UtteranceModel struct {
	ID             string `gorm:"primaryKey;size:32"`
	RecordingID    string `gorm:"size:32;index;not null"`
	Transcription  *string `gorm:"type:text"` // nil while in progress
	FailureDataJSON *string `gorm:"type:text"` // non-nil when this utterance failed
	CreatedAt      time.Time
}

func (UtteranceModel) TableName() string { return "utterances" }

// CreditTransactionModel is one link in an organization's credit ledger
// chain. The four partial unique indexes below (uq_root_transaction,
// uq_child_transaction, uq_bot_transaction, uq_stripe_payment_intent) are
// what actually enforce
// "exactly one leaf, exactly one root, at most one transaction per bot,
// at most one per Stripe payment intent" -- none of that is recomputed in
// application code.
type CreditTransactionModel struct {
	ID                    string `gorm:"primaryKey;size:32"`
	OrganizationID        string `gorm:"size:32;index;not null;uniqueIndex:uq_root_transaction,where:parent_transaction_id IS NULL"`
	CentiBefore           int64  `gorm:"not null"`
	CentiAfter            int64  `gorm:"not null"`
	CentiDelta            int64  `gorm:"not null"`
	ParentTransactionID   *string `gorm:"size:32;uniqueIndex:uq_child_transaction,where:parent_transaction_id IS NOT NULL"`
	BotID                 *string `gorm:"size:32;uniqueIndex:uq_bot_transaction,where:bot_id IS NOT NULL"`
	StripePaymentIntentID *string `gorm:"size:128;uniqueIndex:uq_stripe_payment_intent,where:stripe_payment_intent_id IS NOT NULL"`
	Description           string  `gorm:"type:text"`
	CreatedAt             time.Time
}

func (CreditTransactionModel) TableName() string { return "credit_transactions" }

// WebhookSubscriptionModel is a project- or bot-scoped delivery endpoint.
type WebhookSubscriptionModel struct {
	ID            string `gorm:"primaryKey;size:32"`
	ObjectID      string `gorm:"uniqueIndex;size:32;not null"`
	ProjectID     string `gorm:"size:32;index;not null"`
	BotID         *string `gorm:"size:32;index"`
	URL           string  `gorm:"type:text;not null"`
	TriggersJSON  string  `gorm:"type:text"` // JSON array of webhook.TriggerType
	SigningSecret string  `gorm:"size:128"`
	IsActive      bool    `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (WebhookSubscriptionModel) TableName() string { return "webhook_subscriptions" }

// WebhookDeliveryAttemptModel records one delivery attempt (and its retries)
// for a single subscription/event pair, keyed by a stable idempotency key.
type WebhookDeliveryAttemptModel struct {
	ID                 string `gorm:"primaryKey;size:32"`
	SubscriptionID     string `gorm:"size:32;index;not null"`
	Trigger            int    `gorm:"not null"`
	IdempotencyKey     string `gorm:"uniqueIndex;size:36;not null"`
	BotID              *string `gorm:"size:32;index"`
	PayloadJSON        string  `gorm:"type:text"`
	Status             int     `gorm:"not null;default:1"`
	AttemptCount       int     `gorm:"not null;default:0"`
	LastAttemptAt      *time.Time
	SucceededAt        *time.Time
	ResponseBodiesJSON string `gorm:"type:text"` // ordered, append-only JSON array of strings
	CreatedAt          time.Time
}

func (WebhookDeliveryAttemptModel) TableName() string { return "webhook_delivery_attempts" }

// AsyncTranscriptionModel is a standalone, post-hoc transcription job.
type AsyncTranscriptionModel struct {
	ID                 string `gorm:"primaryKey;size:32"`
	ObjectID           string `gorm:"uniqueIndex;size:32;not null"`
	RecordingID        string `gorm:"size:32;index;not null"`
	Provider           int    `gorm:"not null"`
	State              int    `gorm:"not null;default:1"`
	SettingsJSON       string `gorm:"type:text"`
	FailureReasonsJSON string `gorm:"type:text"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (AsyncTranscriptionModel) TableName() string { return "async_transcriptions" }
