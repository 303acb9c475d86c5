package testdata

import (
	"github.com/brianvoe/gofakeit/v7"
)

func RandomWorkflowName() string {
	return gofakeit.AppName()
}

func RandomNodeName() string {
	return gofakeit.Word()
}

func RandomID() string {
	return gofakeit.UUID()
}

func RandomURL() string {
	return gofakeit.URL()
}
