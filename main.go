package main

import "Gin_postgres_redis_equipment_loans/cmd"

func main() {
	cmd.Execute()
}
