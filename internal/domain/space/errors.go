package space

import "errors"

// Space ドメインのエラー定義
var (
	ErrSpaceNotFound          = errors.New("スペースが見つかりません")
	ErrSpaceInactive          = errors.New("スペースは現在利用できません")
	ErrOutsideOperatingHours  = errors.New("営業時間外の時間帯は予約できません")
	ErrSpaceNameRequired      = errors.New("スペース名は必須です")
	ErrInvalidOperatingHours  = errors.New("営業時間の指定が不正です")
	ErrInvalidHourlyRate      = errors.New("料金は0以上である必要があります")
)
