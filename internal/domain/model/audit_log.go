package model

import "time"

// 決済ステータス遷移など。
type AuditAction string

const (
	//Pending -> Success
	AuditActionPaymentSucceeded AuditAction = "PAYMENT_SUCCEEDED"
	//Pending -> Failed
	AuditActionPaymentFailed AuditAction = "PAYMENT_FAILED"
	//支払い確定による在庫減算
	AuditActionDecreaseStock AuditAction = "DECREASE_STOCK"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourceVariant AuditResourceType = "variant"
)

// 遷移を起こした経路
const (
	AuditActorVerify  = "verify"
	AuditActorWebhook = "webhook"
)

// 監査ログ。
// 「どの経路が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//verify / webhook
	Actor string `gorm:"type:varchar(32);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//注文ならreference、在庫ならvariant id
	ResourceID string `gorm:"type:varchar(64);not null;index" json:"resource_id"`

	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
