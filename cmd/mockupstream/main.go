package main

import (
	"flag"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sleepstars/chatproxy/internal/mockupstream"
)

func main() {
	port := flag.String("port", "8001", "Port to run the server on")
	apiKey := flag.String("api-key", os.Getenv("OPENAI_API_KEY"), "API key the mock accepts")
	flag.Parse()

	if *apiKey == "" {
		log.Fatal("an API key is required (-api-key or OPENAI_API_KEY)")
	}

	gin.SetMode(gin.ReleaseMode)
	r := mockupstream.New(*apiKey).Router()

	log.Printf("mock upstream listening on :%s", *port)
	if err := r.Run(":" + *port); err != nil {
		log.Fatal(err)
	}
}
