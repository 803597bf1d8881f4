package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greysquirr3l/morgan-bevy/internal/domain"
)

const (
	MagicHeader string = `MBLV` // 4 байта
	Version1    uint32 = 1

	// Потолок длины JSON-тела: битый заголовок не должен заставить
	// нас выделить гигабайты
	maxPayloadLen uint32 = 256 << 20
)

// LevelFileHeader — точное представление заголовка файла в памяти.
// binary.Write умеет писать это целиком, так как тут нет слайсов и строк,
// только массивы и числа.
type LevelFileHeader struct {
	Magic      [4]byte // 4 байта
	Version    uint32  // 4 байта
	SavedAt    int64   // 8 байт, unix seconds
	Seed       int64   // 8 байт, 0 если зерно не записано
	ObjectsLen int32   // 4 байта
	PayloadLen uint32  // 4 байта, длина JSON-тела
}

// LevelStore сохраняет и загружает уровни в файлах .mblv:
// бинарный заголовок для быстрой валидации, тело — JSON уровня.
type LevelStore struct {
	SaveDir string
}

func NewLevelStore(dir string) *LevelStore {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &LevelStore{SaveDir: dir}
}

func (s *LevelStore) pathFor(name string) string {
	// Имя не должно выводить за пределы каталога сохранений
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".mblv") {
		base += ".mblv"
	}
	return filepath.Join(s.SaveDir, base)
}

// Save записывает уровень под указанным именем, перетирая прошлую версию.
func (s *LevelStore) Save(name string, level *domain.Level) error {
	f, err := os.Create(s.pathFor(name))
	if err != nil {
		return err
	}
	defer f.Close()

	return writeLevel(f, level)
}

// Load читает уровень, сохраненный ранее через Save.
func (s *LevelStore) Load(name string) (*domain.Level, error) {
	f, err := os.Open(s.pathFor(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLevel(f)
}

// List возвращает имена всех сохраненных уровней (без расширения).
func (s *LevelStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.SaveDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mblv") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".mblv"))
	}
	return names, nil
}

func writeLevel(w io.Writer, level *domain.Level) error {
	payload, err := json.Marshal(level)
	if err != nil {
		return fmt.Errorf("failed to encode level: %w", err)
	}

	header := LevelFileHeader{
		Version:    Version1,
		SavedAt:    time.Now().Unix(),
		ObjectsLen: int32(len(level.Objects)),
		PayloadLen: uint32(len(payload)),
	}
	if level.GenerationSeed != nil {
		header.Seed = *level.GenerationSeed
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

func readLevel(r io.Reader) (*domain.Level, error) {
	var header LevelFileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Валидация
	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("invalid magic")
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version1)
	}
	if header.PayloadLen > maxPayloadLen {
		return nil, fmt.Errorf("payload length %d exceeds limit %d", header.PayloadLen, maxPayloadLen)
	}

	payload := make([]byte, header.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	var level domain.Level
	if err := json.Unmarshal(payload, &level); err != nil {
		return nil, fmt.Errorf("failed to decode level: %w", err)
	}
	if int32(len(level.Objects)) != header.ObjectsLen {
		return nil, fmt.Errorf("object count mismatch: header says %d, payload has %d",
			header.ObjectsLen, len(level.Objects))
	}
	return &level, nil
}
