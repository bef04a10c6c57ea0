package main

import (
	"log"

	_ "storefront/docs"
	"storefront/internal/app"
)

// @title Storefront API
// @version 1.0
// @description Catalog API for the storefront backend with two-tier response caching.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
