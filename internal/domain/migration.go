package domain

import "time"

// MigrationStatus はマイグレーションの適用状態
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration はスキーマ変更1件を表す。
type Migration struct {
	Version   string     // 例: "001"
	Name      string     // ファイル名のバージョン以降
	FileName  string     // 埋め込みFS上のファイル名
	AppliedAt *time.Time // 未適用ならnil
	Status    MigrationStatus
}
