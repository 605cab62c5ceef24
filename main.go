package main

import (
	"fmt"
	"os"

	"portwarden/cli"
)

// @title                       portwarden API
// @version                     1.0
// @description                 Concurrent TCP port scanner: ordered per-port states, service labels and banners for one host per request.
// @license.name                MIT
// @license.url                 https://opensource.org/licenses/MIT
// @BasePath                    /
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := cli.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
