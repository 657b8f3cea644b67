package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"dcabot/pkg/crypto"
)

// botctl - служебные операции для подготовки окружения бота:
// генерация ключа шифрования, шифрование секрета биржи и
// хеширование токена доступа к API статуса.
//
// Использование:
//
//	botctl gen-key
//	    печатает случайный 32-символьный ключ для ENCRYPTION_KEY
//
//	botctl encrypt-secret <key> <secret>
//	    печатает значение для BYBIT_API_SECRET_ENC
//
//	botctl hash-token <token>
//	    печатает bcrypt-хеш для API_TOKEN_HASH
func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "gen-key":
		// 16 случайных байт в hex = 32 ASCII-символа, ровно под AES-256
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			fatal("failed to generate key: %v", err)
		}
		fmt.Println(hex.EncodeToString(raw))

	case "encrypt-secret":
		if len(os.Args) != 4 {
			usage()
		}
		enc, err := crypto.EncryptWithKeyString(os.Args[3], os.Args[2])
		if err != nil {
			fatal("failed to encrypt secret: %v", err)
		}
		fmt.Println(enc)

	case "hash-token":
		if len(os.Args) != 3 {
			usage()
		}
		hash, err := crypto.HashPassword(os.Args[2])
		if err != nil {
			fatal("failed to hash token: %v", err)
		}
		fmt.Println(hash)

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  botctl gen-key
  botctl encrypt-secret <key> <secret>
  botctl hash-token <token>`)
	os.Exit(2)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
