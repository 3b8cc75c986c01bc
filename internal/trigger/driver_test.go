package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composureai/perfectstorm/internal/psapi"
	"github.com/composureai/perfectstorm/internal/psapi/psapitest"
)

func newTestDriver(server *psapitest.Server) *Driver {
	client := psapi.New(psapi.Config{ServerURL: server.URL()})
	return New(client.Triggers, time.Millisecond)
}

func TestSubmitRecipeWaitsForCompletion(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	server.SetTriggerHandler(func(trig psapi.Trigger) psapi.Trigger {
		trig.Status = psapi.TriggerDone
		trig.Result = map[string]interface{}{"ok": true}
		return trig
	})

	driver := newTestDriver(server)
	result, err := driver.SubmitRecipe(context.Background(), RecipeArgs{
		Recipe: "consul-server",
		Params: map[string]string{"DATACENTER": "pool-a"},
		AddTo:  "pool-a-consul-server",
	})

	require.NoError(t, err)
	assert.Equal(t, psapi.TriggerDone, result.Status)

	remaining := server.Triggers()
	assert.Empty(t, remaining, "completed triggers are deleted as best-effort cleanup")
}

func TestWaitReturnsFailedErrorOnTriggerError(t *testing.T) {
	server := psapitest.New()
	defer server.Close()
	server.SetTriggerHandler(func(trig psapi.Trigger) psapi.Trigger {
		trig.Status = psapi.TriggerError
		trig.Result = map[string]interface{}{"reason": "no free ports"}
		return trig
	})

	driver := newTestDriver(server)
	_, err := driver.SubmitRecipe(context.Background(), RecipeArgs{Recipe: "load-balancer"})

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "no free ports", failed.Reason)
}

func TestWaitPollsUntilTerminal(t *testing.T) {
	server := psapitest.New()
	defer server.Close()

	driver := newTestDriver(server)
	trig, err := driver.Submit(context.Background(), "recipe", map[string]interface{}{"recipe": "consul-client"})
	require.NoError(t, err)

	go func() {
		time.Sleep(5 * time.Millisecond)
		server.CompleteTrigger(trig.UUID, map[string]interface{}{"ok": true})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	final, err := driver.Wait(ctx, trig)
	require.NoError(t, err)
	assert.Equal(t, psapi.TriggerDone, final.Status)
}
