package deadline

import (
	"context"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/go-mixed/deadline.v1/utils/core"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestBindCompleted(t *testing.T) {
	job, err := Bind[int](strconv.Atoi, "42")
	require.NoError(t, err)
	assert.Equal(t, "strconv.Atoi", job.Name)
	assert.Equal(t, []any{"42"}, job.Args)

	outcome, err := Run(context.Background(), nil, job, time.Second)
	require.NoError(t, err)
	value, ok := outcome.Value()
	assert.True(t, ok)
	assert.Equal(t, 42, value)
}

func TestBindFailed(t *testing.T) {
	job, err := Bind[int](strconv.Atoi, "x")
	require.NoError(t, err)

	outcome, err := Run(context.Background(), nil, job, time.Second)
	require.NoError(t, err)
	require.True(t, outcome.Failed())

	var numErr *strconv.NumError
	assert.True(t, errors.As(outcome.Err(), &numErr))
	assert.Equal(t, "x", numErr.Num)
}

type ctxKey struct{}

func TestBindSignatures(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "from caller")

	withContext, err := Bind[string](func(ctx context.Context, suffix string) string {
		return ctx.Value(ctxKey{}).(string) + suffix
	}, "!")
	require.NoError(t, err)
	outcome := MustRun(ctx, nil, withContext, time.Second)
	value, _ := outcome.Value()
	assert.Equal(t, "from caller!", value)

	errOnly, err := Bind[struct{}](func(fail bool) error {
		if fail {
			return errors.New("failed")
		}
		return nil
	}, true)
	require.NoError(t, err)
	assert.EqualError(t, MustRun(ctx, nil, errOnly, time.Second).Err(), "failed")

	ran := false
	noResult, err := Bind[any](func() { ran = true })
	require.NoError(t, err)
	assert.True(t, MustRun(ctx, nil, noResult, time.Second).Completed())
	assert.True(t, ran)

	join, err := Bind[string](strings.Join, []string{"a", "b"}, "-")
	require.NoError(t, err)
	value, _ = MustRun(ctx, nil, join, time.Second).Value()
	assert.Equal(t, "a-b", value)

	sum, err := Bind[int](func(base int, n ...int) int {
		for _, i := range n {
			base += i
		}
		return base
	}, 1, 2, 3)
	require.NoError(t, err)
	v, _ := MustRun(ctx, nil, sum, time.Second).Value()
	assert.Equal(t, 6, v)

	// 唯一的返回值是error时, 总是当作任务的错误
	asError, err := Bind[error](errors.New, "message")
	require.NoError(t, err)
	assert.EqualError(t, MustRun(ctx, nil, asError, time.Second).Err(), "message")
}

func TestBindInvalid(t *testing.T) {
	_, err := Bind[int]("strconv.Atoi")
	assert.True(t, errors.Is(err, core.ErrNotFunc))

	var nilFn func() int
	_, err = Bind[int](nilFn)
	assert.True(t, errors.Is(err, core.ErrNotFunc))

	_, err = Bind[int](strconv.Atoi)
	assert.True(t, errors.Is(err, core.ErrArgs))

	_, err = Bind[int](strconv.Atoi, 42)
	assert.True(t, errors.Is(err, core.ErrArgs))

	_, err = Bind[int](strconv.Atoi, nil)
	assert.True(t, errors.Is(err, core.ErrArgs))

	_, err = Bind[string](strconv.Atoi, "42")
	assert.True(t, errors.Is(err, ErrBadSignature))

	_, err = Bind[int](func() (int, int, error) { return 0, 0, nil })
	assert.True(t, errors.Is(err, ErrBadSignature))

	_, err = Bind[int](func() (int, string) { return 0, "" })
	assert.True(t, errors.Is(err, ErrBadSignature))
}

func TestWrap(t *testing.T) {
	e, logs := newObservedExecutor(Params{Name: "wrapped"})

	_, err := Wrap[int](e, 0, strconv.Atoi)
	assert.True(t, errors.Is(err, ErrInvalidDeadline))

	_, err = Wrap[int](e, time.Second, 42)
	assert.True(t, errors.Is(err, core.ErrNotFunc))

	atoi, err := Wrap[int](e, time.Second, strconv.Atoi)
	require.NoError(t, err)

	outcome, err := atoi(context.Background(), "7")
	require.NoError(t, err)
	value, _ := outcome.Value()
	assert.Equal(t, 7, value)

	_, err = atoi(context.Background(), "7", "8")
	assert.True(t, errors.Is(err, core.ErrArgs))

	sleep, err := Wrap[time.Duration](e, 50*time.Millisecond, func(d time.Duration) time.Duration {
		time.Sleep(d)
		return d
	})
	require.NoError(t, err)

	outcome2, err := sleep(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, outcome2.TimedOut())

	entries := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{200 * time.Millisecond}, entries[0].ContextMap()["args"])
	assert.Contains(t, entries[0].ContextMap()["job"], "TestWrap.func")
	assert.Contains(t, entries[0].ContextMap()["caller"], "job_test.go")

	assert.True(t, e.WaitAbandoned(time.Second))
}

func TestFuncAdapter(t *testing.T) {
	assert.Nil(t, Func[int](nil))

	outcome, err := Execute(Func(func() (int, error) { return 3, nil }), time.Second)
	require.NoError(t, err)
	value, _ := outcome.Value()
	assert.Equal(t, 3, value)
}
