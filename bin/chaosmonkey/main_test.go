package main

import (
	"testing"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCountFailed(t *testing.T) {
	results := []*types.Result{
		{Status: types.StatusCompleted},
		{Status: types.StatusFailed},
		{Status: types.StatusSkipped},
		{Status: types.StatusFailed},
	}

	assert.Equal(t, 2, countFailed(results))
	assert.Equal(t, 0, countFailed(nil))
	assert.Equal(t, 0, countFailed([]*types.Result{{Status: types.StatusCompleted}}))
}
