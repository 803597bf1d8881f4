package server

import (
	"encoding/json"
	"net/http"

	"github.com/greysquirr3l/morgan-bevy/internal/editor"
	"github.com/greysquirr3l/morgan-bevy/internal/network"
)

// DebugHandler предоставляет доступ к внутреннему состоянию редактора
type DebugHandler struct {
	Service *editor.Service
	Hub     *network.Broadcaster
}

func NewDebugHandler(s *editor.Service, hub *network.Broadcaster) *DebugHandler {
	return &DebugHandler{Service: s, Hub: hub}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/level", h.handleLevelSummary)
	mux.HandleFunc("/debug/objects", h.handleDumpObjects)
	mux.HandleFunc("/debug/sessions", h.handleSessions)
}

// /debug/level - сводка по текущему уровню
func (h *DebugHandler) handleLevelSummary(w http.ResponseWriter, r *http.Request) {
	type LevelSummary struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		ObjectCount int      `json:"object_count"`
		Layers      []string `json:"layers"`
		Seed        *int64   `json:"seed,omitempty"`
	}

	level, err := h.Service.CurrentLevel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, LevelSummary{
		ID:          level.ID,
		Name:        level.Name,
		ObjectCount: len(level.Objects),
		Layers:      level.Layers,
		Seed:        level.GenerationSeed,
	})
}

// /debug/objects - полный дамп сущностей текущего уровня
func (h *DebugHandler) handleDumpObjects(w http.ResponseWriter, r *http.Request) {
	level, err := h.Service.CurrentLevel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, level.Objects)
}

// /debug/sessions - количество подключенных окон редактора
func (h *DebugHandler) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"sessions": h.Hub.SubscriberCount()})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	// Разрешаем запросы с любого источника (нужно для локального debug_client.html)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	w.Header().Set("Content-Type", "application/json")

	// Если data == nil, возвращаем пустой массив [], а не null
	if data == nil {
		w.Write([]byte("[]"))
		return
	}

	json.NewEncoder(w).Encode(data)
}
