package core

import (
	"context"
	"github.com/pkg/errors"
	"reflect"
	"runtime"
	"strings"
)

var (
	ErrNotFunc = errors.New("not a function")
	ErrArgs    = errors.New("arguments mismatch")
)

var (
	ErrorType   = reflect.TypeOf((*error)(nil)).Elem()
	ContextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Func 一个可以动态调用的函数, 类型信息在 NewFunc 时缓存, 参数在 Args 时校验
type Func struct {
	fnValue  reflect.Value
	fnType   reflect.Type
	typesIn  []reflect.Type
	typesOut []reflect.Type
}

// NewFunc 解析一个函数. fn 不是函数或者是nil函数时返回 ErrNotFunc
func NewFunc(fn any) (*Func, error) {
	if fn == nil {
		return nil, errors.Wrap(ErrNotFunc, "<nil>")
	}

	fnValue := reflect.ValueOf(fn)
	if fnValue.Kind() != reflect.Func {
		return nil, errors.Wrapf(ErrNotFunc, "it is a '%s'", fnValue.Type())
	} else if fnValue.IsNil() {
		return nil, errors.Wrapf(ErrNotFunc, "nil '%s'", fnValue.Type())
	}

	f := &Func{
		fnValue: fnValue,
		fnType:  fnValue.Type(),
	}

	f.typesIn = make([]reflect.Type, f.fnType.NumIn())
	for i := range f.typesIn {
		f.typesIn[i] = f.fnType.In(i)
	}

	f.typesOut = make([]reflect.Type, f.fnType.NumOut())
	for i := range f.typesOut {
		f.typesOut[i] = f.fnType.Out(i)
	}

	return f, nil
}

// Name 函数的声明名称, 比如: main.doSomething, main.main.func1
func (f *Func) Name() string {
	if rf := runtime.FuncForPC(f.fnValue.Pointer()); rf != nil {
		// 方法值会带上 -fm 后缀
		return strings.TrimSuffix(rf.Name(), "-fm")
	}
	return f.fnType.String()
}

func (f *Func) Type() reflect.Type {
	return f.fnType
}

func (f *Func) In() []reflect.Type {
	return f.typesIn
}

func (f *Func) Out() []reflect.Type {
	return f.typesOut
}

// AcceptContext 第一个参数是否为 context.Context
func (f *Func) AcceptContext() bool {
	return len(f.typesIn) > 0 && f.typesIn[0] == ContextType
}

// Args 将args按照函数的参数类型转换为 reflect.Value, skip 表示跳过前面几个参数(由调用方自行传入)
//
//	nil 只能传给 interface/ptr/map/slice/func/chan 类型的参数
//	可变参数的函数, 多余的参数会按照可变参数的元素类型校验
func (f *Func) Args(skip int, args ...any) ([]reflect.Value, error) {
	typesIn := f.typesIn[skip:]
	variadic := f.fnType.IsVariadic()

	if variadic {
		if len(args) < len(typesIn)-1 {
			return nil, errors.Wrapf(ErrArgs, "%s needs at least %d argument(s), got %d", f.Name(), len(typesIn)-1, len(args))
		}
	} else if len(args) != len(typesIn) {
		return nil, errors.Wrapf(ErrArgs, "%s needs %d argument(s), got %d", f.Name(), len(typesIn), len(args))
	}

	values := make([]reflect.Value, len(args))
	for i, arg := range args {
		var t reflect.Type
		if variadic && i >= len(typesIn)-1 {
			t = typesIn[len(typesIn)-1].Elem()
		} else {
			t = typesIn[i]
		}

		v, err := toValue(arg, t)
		if err != nil {
			return nil, errors.Wrapf(err, "%s argument #%d", f.Name(), i+skip)
		}
		values[i] = v
	}

	return values, nil
}

// Call 运行函数. in 必须是 Args 校验之后的参数
func (f *Func) Call(in []reflect.Value) []reflect.Value {
	return f.fnValue.Call(in)
}

func toValue(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.Wrapf(ErrArgs, "nil is not assignable to '%s'", t)
	}

	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(t) {
		return reflect.Value{}, errors.Wrapf(ErrArgs, "'%s' is not assignable to '%s'", v.Type(), t)
	}
	return v, nil
}
