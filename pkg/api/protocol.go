package api

import (
	"encoding/json"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
)

// --- КЛИЕНТ -> СЕРВЕР ---

// ClientCommand это корневой объект для всех сообщений от клиента к серверу.
type ClientCommand struct {
	// Action название операции: GENERATE_BSP, GENERATE_WFC, GET_LEVEL,
	// UPDATE_TRANSFORM, QUERY_BOUNDS, SAVE_LEVEL, LOAD_LEVEL, EXPORT,
	// LIST_THEMES, GET_THEME, SEARCH_ASSETS, SCAN_ASSETS.
	Action string `json:"action"`

	// RequestID проставляется клиентом и возвращается в ответе как есть,
	// чтобы клиент мог сопоставить ответ своему запросу.
	RequestID string `json:"request_id,omitempty"`

	// Payload JSON-объект с данными операции. Структура зависит от Action.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- СЕРВЕР -> КЛИЕНТ ---

// Типы ответов сервера.
const (
	// TypeResult — прямой ответ на команду клиента.
	TypeResult = "RESULT"
	// TypeLevelChanged — широковещательное уведомление: текущий уровень
	// заменен или изменен (генерация, загрузка, правка трансформа).
	TypeLevelChanged = "LEVEL_CHANGED"
)

// ServerResponse это корневой объект, который сервер отправляет клиенту.
type ServerResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`

	// Data — результат операции (уровень, список тем, сводка экспорта...).
	Data any `json:"data,omitempty"`
}

// ResultFor строит успешный ответ на команду.
func ResultFor(cmd ClientCommand, data any) ServerResponse {
	return ServerResponse{
		Type:      TypeResult,
		RequestID: cmd.RequestID,
		Success:   true,
		Data:      data,
	}
}

// ErrorFor строит ответ-ошибку на команду.
func ErrorFor(cmd ClientCommand, err error) ServerResponse {
	return ServerResponse{
		Type:      TypeResult,
		RequestID: cmd.RequestID,
		Success:   false,
		Error:     err.Error(),
	}
}

// --- Payloads ---

// UpdateTransformPayload — правка трансформа одного объекта сцены.
type UpdateTransformPayload struct {
	ObjectID  string             `json:"object_id"`
	Transform domain.Transform3D `json:"transform"`
}

// QueryBoundsPayload — пространственный запрос по AABB.
type QueryBoundsPayload struct {
	Min [3]float32 `json:"min"`
	Max [3]float32 `json:"max"`
}

// FilePayload используется для SAVE_LEVEL и LOAD_LEVEL.
type FilePayload struct {
	Name string `json:"name"`
}

// ExportPayload — запрос мультиформатного экспорта текущего уровня.
type ExportPayload struct {
	Formats    []string `json:"formats"`
	OutputPath string   `json:"output_path"`
}

// ThemePayload используется для GET_THEME.
type ThemePayload struct {
	ID string `json:"id"`
}

// SearchAssetsPayload — фильтры поиска по каталогу ассетов.
// Пустые поля означают "без фильтра".
type SearchAssetsPayload struct {
	Query      string `json:"query"`
	AssetType  string `json:"asset_type,omitempty"`
	Collection string `json:"collection,omitempty"`
}

// ScanAssetsPayload — запрос пересканирования каталога ассетов.
type ScanAssetsPayload struct {
	Directory string `json:"directory"`
}
