package models

import (
	"github.com/mmdatafocus/easytask_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Student{}, &FlaggedRecord{},
		&LookupLink{},
		&User{},
	)
	if err != nil {
		panic(err)
	}
}
