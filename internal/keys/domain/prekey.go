package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BackupInterval 同一 device 兩次金鑰備份的最小間隔
const BackupInterval = 24 * time.Hour

// OneTimeKeyList 以 jsonb 儲存的一次性 prekey 陣列
type OneTimeKeyList []string

// Value implement driver.Valuer
func (l OneTimeKeyList) Value() (driver.Value, error) {
	if l == nil {
		l = OneTimeKeyList{}
	}
	return json.Marshal(l)
}

// Scan implement sql.Scanner
func (l *OneTimeKeyList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported one time key list type %T", src)
	}
}

// PreKeyBundle 每個 (user, device) 一列
type PreKeyBundle struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	UserID           string         `gorm:"size:64;uniqueIndex:idx_prekey_user_device;index" json:"user_id"`
	DeviceID         string         `gorm:"size:64;uniqueIndex:idx_prekey_user_device" json:"device_id"`
	IdentityKey      string         `gorm:"type:text" json:"identity_key"`
	SignedPreKey     string         `gorm:"type:text" json:"signed_pre_key"`
	OneTimePreKeys   OneTimeKeyList `gorm:"type:jsonb" json:"one_time_pre_keys"`
	BackupCiphertext string         `gorm:"type:text" json:"-"`
	BackupIV         string         `gorm:"type:text" json:"-"`
	BackupSalt       string         `gorm:"type:text" json:"-"`
	LastBackupAt     time.Time      `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName gorm table name
func (PreKeyBundle) TableName() string {
	return "prekey_bundles"
}

// TakeOneTimeKey 移除並回傳一把一次性 prekey，耗盡時回 false
func (b *PreKeyBundle) TakeOneTimeKey() (string, bool) {
	if len(b.OneTimePreKeys) == 0 {
		return "", false
	}
	key := b.OneTimePreKeys[0]
	b.OneTimePreKeys = append(OneTimeKeyList{}, b.OneTimePreKeys[1:]...)
	return key, true
}

// ConsumedBundle consume 回傳給發起者的內容
type ConsumedBundle struct {
	UserID        string `json:"user_id"`
	DeviceID      string `json:"device_id"`
	IdentityKey   string `json:"identity_key"`
	SignedPreKey  string `json:"signed_pre_key"`
	OneTimePreKey string `json:"one_time_pre_key,omitempty"`
}

// PublishBundleReq 上傳金鑰包的請求
type PublishBundleReq struct {
	UserID         string   `json:"user_id"`
	DeviceID       string   `json:"device_id"`
	IdentityKey    string   `json:"identity_key"`
	SignedPreKey   string   `json:"signed_pre_key"`
	OneTimePreKeys []string `json:"one_time_pre_keys"`
}

// EncryptedBackupReq 金鑰備份 blob，server 只存不解
type EncryptedBackupReq struct {
	DeviceID   string `json:"device_id"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
}

// KeyAuditRecord 金鑰操作審計，絕不含金鑰材料
type KeyAuditRecord struct {
	Operation     string    `bson:"operation" json:"operation"`
	UserID        string    `bson:"user_id" json:"user_id"`
	DeviceID      string    `bson:"device_id,omitempty" json:"device_id,omitempty"`
	ClientAddress string    `bson:"client_address" json:"client_address"`
	Outcome       string    `bson:"outcome" json:"outcome"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}
