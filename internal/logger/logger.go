package logger

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func New() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	log.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(viper.GetString("log.level")); err == nil {
		log.SetLevel(lvl)
	}
	return log
}
