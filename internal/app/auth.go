package app

import (
	"storefront/internal/auth"
)

func (app *App) initializeAuth() error {
	var tokens auth.TokenStore
	if app.RedisClient != nil {
		tokens = app.RedisClient
	}

	authInstance, err := auth.New(app.Config.JWTSecret, tokens)
	if err != nil {
		return err
	}
	app.Auth = authInstance
	return nil
}
