// ops-token mints a service JWT for the /internal/ops endpoints.
//
// Usage:
//   API_SECRET=... go run ./cmd/ops-token
package main

import (
	"fmt"
	"os"

	"github.com/mmdatafocus/easytask_backend/models"
	"github.com/mmdatafocus/easytask_backend/utils"
)

func main() {
	token, err := utils.JwtGenerate(0, string(models.UserRoleLecturer))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
