package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitestock/sitestock/internal/app"
	_ "github.com/sitestock/sitestock/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	require.NotPanics(t, main)
}
