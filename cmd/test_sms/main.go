package main

import (
	"flag"
	"log"

	"mahber_app_echo/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	phone := flag.String("phone", "", "Phone number (e.g. 251911234567 or 0911234567)")
	msg := flag.String("msg", "Test message from SMSService", "Message body")
	flag.Parse()

	if *phone == "" {
		log.Fatal("Please provide a phone number using -phone flag")
	}

	// Load envs
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found")
	}

	service := services.NewSMSService()

	to := services.NormalizePhoneNumber(*phone)
	log.Printf("Sending message to %s: %s", to, *msg)

	if err := service.SendMessage(*phone, *msg); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}

	log.Println("Message sent successfully!")
}
