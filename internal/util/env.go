package util

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file into the process environment.
// A missing file is not an error; production containers inject
// their environment directly.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
