package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log — глобальный логгер приложения.
var Log *logrus.Logger

// Init настраивает глобальный логгер.
// Вызывается один раз при старте в main.go.
func Init() {
	Log = logrus.New()

	// Уровень логирования берем из окружения. По умолчанию "info",
	// для отладки генераторов удобно выставить "debug".
	levelName, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	// "json" — для продакшена и сбора логов, текст — для разработки.
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	Log.SetOutput(os.Stdout)
}

func init() {
	// Подстраховка для тестов и кода, который не проходит через main.
	if Log == nil {
		Init()
	}
}
