package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
	"github.com/greysquirr3l/morgan-bevy/internal/editor"
	"github.com/greysquirr3l/morgan-bevy/internal/network"
	"github.com/greysquirr3l/morgan-bevy/pkg/api"
	"github.com/greysquirr3l/morgan-bevy/pkg/bsp"
	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
	"github.com/greysquirr3l/morgan-bevy/pkg/wfc"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // команды с параметрами генерации и трансформами
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между Websocket и editor.Service
type Client struct {
	Editor    *editor.Service
	Hub       *network.Broadcaster
	Conn      *websocket.Conn
	Send      chan api.ServerResponse
	SessionID string

	// done закрывается при выходе writePump: больше из Send никто
	// не читает, и пересыльщик обязан остановиться
	done chan struct{}
}

func NewClient(svc *editor.Service, hub *network.Broadcaster, conn *websocket.Conn) *Client {
	return &Client{
		Editor:    svc,
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan api.ServerResponse, 256),
		SessionID: uuid.NewString(),
		done:      make(chan struct{}),
	}
}

// readPump читает команды от клиента
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c.SessionID)
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close websocket connection")
		}
		logger.Log.WithField("session_id", c.SessionID).Info("Client disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	// ПОДПИСКА НА ОБНОВЛЕНИЯ
	updates := c.Hub.Register(c.SessionID)
	go c.forwardUpdates(updates)

	logger.Log.WithField("session_id", c.SessionID).Info("Client connected")

	// ЦИКЛ ЧТЕНИЯ КОМАНД
	for {
		var cmd api.ClientCommand
		err := c.Conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Errorf("WS Error: %v", err)
			}
			break
		}

		response, changed := c.handleCommand(cmd)
		c.Hub.SendTo(c.SessionID, response)

		// Мутации текущего уровня видны всем открытым окнам редактора
		if changed {
			c.Hub.BroadcastExcept(c.SessionID, api.ServerResponse{
				Type:    api.TypeLevelChanged,
				Success: true,
			})
		}
	}
}

// forwardUpdates перекладывает сообщения хаба в канал writePump.
// Завершается по закрытию канала хаба (Unregister) либо по done:
// мертвое соединение с полным буфером не должно держать горутину вечно.
func (c *Client) forwardUpdates(updates <-chan api.ServerResponse) {
	defer close(c.Send)
	for msg := range updates {
		select {
		case c.Send <- msg:
		case <-c.done:
			return
		}
	}
}

// handleCommand выполняет одну команду. Второй результат — true,
// если команда изменила текущий уровень.
func (c *Client) handleCommand(cmd api.ClientCommand) (api.ServerResponse, bool) {
	logger.Log.WithField("action", cmd.Action).Debug("Handling command")

	switch cmd.Action {
	case "GENERATE_BSP":
		var params bsp.Params
		if err := json.Unmarshal(cmd.Payload, &params); err != nil {
			return api.ErrorFor(cmd, fmt.Errorf("invalid payload: %w", err)), false
		}
		level := c.Editor.GenerateBSP(params)
		return api.ResultFor(cmd, level), true

	case "GENERATE_WFC":
		params := wfc.DefaultParams()
		if err := json.Unmarshal(cmd.Payload, &params); err != nil {
			return api.ErrorFor(cmd, fmt.Errorf("invalid payload: %w", err)), false
		}
		level, err := c.Editor.GenerateWFC(params)
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, level), true

	case "GET_LEVEL":
		level, err := c.Editor.CurrentLevel()
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, level), false

	case "UPDATE_TRANSFORM":
		var p api.UpdateTransformPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		if err := c.Editor.UpdateTransform(p.ObjectID, p.Transform); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, nil), true

	case "QUERY_BOUNDS":
		var p api.QueryBoundsPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		ids, err := c.Editor.QueryBounds(domain.BoundingBox{Min: p.Min, Max: p.Max})
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, ids), false

	case "SAVE_LEVEL":
		var p api.FilePayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		if err := c.Editor.SaveLevel(p.Name); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, nil), false

	case "LOAD_LEVEL":
		var p api.FilePayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		level, err := c.Editor.LoadLevel(p.Name)
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, level), true

	case "LIST_LEVELS":
		names, err := c.Editor.ListLevels()
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, names), false

	case "EXPORT":
		var p api.ExportPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		result, err := c.Editor.Export(p.Formats, p.OutputPath)
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, result), false

	case "LIST_THEMES":
		return api.ResultFor(cmd, c.Editor.Themes().All()), false

	case "GET_THEME":
		var p api.ThemePayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, fmt.Errorf("invalid payload: %w", err)), false
		}
		theme, ok := c.Editor.Themes().Lookup(p.ID)
		if !ok {
			return api.ErrorFor(cmd, fmt.Errorf("theme %q not found", p.ID)), false
		}
		return api.ResultFor(cmd, theme), false

	case "LIST_TILESETS":
		return api.ResultFor(cmd, c.Editor.Tilesets().All()), false

	case "SEARCH_ASSETS":
		var p api.SearchAssetsPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, fmt.Errorf("invalid payload: %w", err)), false
		}
		results, err := c.Editor.SearchAssets(context.Background(), p.Query, p.AssetType, p.Collection)
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, results), false

	case "SCAN_ASSETS":
		var p api.ScanAssetsPayload
		if err := decodePayload(cmd.Payload, &p); err != nil {
			return api.ErrorFor(cmd, err), false
		}
		result, err := c.Editor.ScanAssets(context.Background(), p.Directory)
		if err != nil {
			return api.ErrorFor(cmd, err), false
		}
		return api.ResultFor(cmd, result), false

	default:
		return api.ErrorFor(cmd, fmt.Errorf("unknown action %q", cmd.Action)), false
	}
}

// decodePayload разбирает payload и прогоняет его через Validate.
func decodePayload(raw json.RawMessage, v api.Validator) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return v.Validate()
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
