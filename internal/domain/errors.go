package domain

import "errors"

var (
	// ErrInvalidBitLength は要求されたビット長が生成条件を満たさない場合のエラー。
	ErrInvalidBitLength = errors.New("invalid bit length")

	// ErrEmptyRange は素数探索範囲が空または逆転している場合のエラー。
	ErrEmptyRange = errors.New("empty range")

	// ErrNoInverse はモジュラ逆元が存在しない場合のエラー。
	ErrNoInverse = errors.New("no modular inverse")

	// ErrNegativeOperand は負の値を受け付けない演算に負の値が渡された場合のエラー。
	ErrNegativeOperand = errors.New("negative operand")

	// ErrGenerationTimeout は乱択探索が試行回数の上限に達した場合のエラー。
	ErrGenerationTimeout = errors.New("generation attempts exhausted")

	// ErrKeyPairNotFound は指定されたIDの鍵ペアが存在しない場合のエラー。
	ErrKeyPairNotFound = errors.New("key pair not found")

	// ErrInvalidKeyPairID は鍵ペアIDの形式が不正な場合のエラー。
	ErrInvalidKeyPairID = errors.New("invalid key pair ID")

	// ErrInvalidBatchSize はバッチ生成の件数が不正な場合のエラー。
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
