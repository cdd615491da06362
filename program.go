package guda

import (
	"fmt"
	"math"
	"slices"
	"sync"
)

// ProgramForm records how a program was produced.
type ProgramForm int

const (
	// FormSource programs run the per-thread kernel body for every thread.
	FormSource ProgramForm = iota
	// FormBinary programs run the precompiled block-level body once per block.
	FormBinary
)

func (f ProgramForm) String() string {
	switch f {
	case FormSource:
		return "source"
	case FormBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParamKind is the type of one kernel parameter in a kernel's ABI.
type ParamKind uint8

const (
	ParamBuffer ParamKind = iota + 1 // DevicePtr
	ParamInt32                       // int32 scalar
	ParamUint32                      // uint32 scalar
	ParamFloat32                     // float32 scalar
)

func (k ParamKind) String() string {
	switch k {
	case ParamBuffer:
		return "buffer"
	case ParamInt32:
		return "int32"
	case ParamUint32:
		return "uint32"
	case ParamFloat32:
		return "float32"
	default:
		return fmt.Sprintf("ParamKind(%d)", uint8(k))
	}
}

// KernelDef describes a kernel in both of its forms. Source is the
// per-thread body; Binary is the block-level body a device compiler would
// emit ahead of time. Both must compute the same result.
type KernelDef struct {
	Name   string
	Params []ParamKind

	// SharedMem is the block-shared scratch size in bytes.
	SharedMem int

	// Cooperative kernels call SyncThreads and need every thread of a
	// block running at once. Non-cooperative source kernels receive a nil
	// *Block.
	Cooperative bool

	Source SharedKernelFunc
	Binary GroupFunc
}

// Module is a named collection of kernel definitions.
type Module struct {
	name    string
	kernels map[string]*KernelDef
	order   []string
}

// NewModule validates defs and groups them under name.
func NewModule(name string, defs ...*KernelDef) (*Module, error) {
	if name == "" {
		return nil, NewInvalidArgError("NewModule", "module name is empty")
	}
	m := &Module{name: name, kernels: make(map[string]*KernelDef, len(defs))}
	for _, def := range defs {
		if err := def.validate(); err != nil {
			return nil, err
		}
		if _, dup := m.kernels[def.Name]; dup {
			return nil, NewProgramError("NewModule", fmt.Sprintf("duplicate kernel %q in module %q", def.Name, name), nil)
		}
		m.kernels[def.Name] = def
		m.order = append(m.order, def.Name)
	}
	return m, nil
}

func (def *KernelDef) validate() error {
	switch {
	case def == nil || def.Name == "":
		return NewInvalidArgError("NewModule", "kernel definition without a name")
	case def.Source == nil || def.Binary == nil:
		return NewProgramError("NewModule", fmt.Sprintf("kernel %q needs both source and binary forms", def.Name), nil)
	case def.SharedMem < 0 || def.SharedMem > MaxSharedMemPerBlock:
		return NewInvalidArgError("NewModule", fmt.Sprintf("kernel %q shared memory %d outside [0, %d]", def.Name, def.SharedMem, MaxSharedMemPerBlock))
	}
	for i, p := range def.Params {
		if p < ParamBuffer || p > ParamFloat32 {
			return NewInvalidArgError("NewModule", fmt.Sprintf("kernel %q parameter %d has unknown kind %d", def.Name, i, p))
		}
	}
	return nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// KernelNames returns kernel names in definition order.
func (m *Module) KernelNames() []string {
	return slices.Clone(m.order)
}

// Kernel returns the named definition.
func (m *Module) Kernel(name string) (*KernelDef, bool) {
	def, ok := m.kernels[name]
	return def, ok
}

var modules = struct {
	sync.RWMutex
	byName map[string]*Module
}{byName: make(map[string]*Module)}

// RegisterModule makes m available to BuildProgram and LoadBinary.
func RegisterModule(m *Module) error {
	modules.Lock()
	defer modules.Unlock()
	if _, dup := modules.byName[m.name]; dup {
		return NewProgramError("RegisterModule", fmt.Sprintf("module %q already registered", m.name), nil)
	}
	modules.byName[m.name] = m
	return nil
}

// LookupModule returns a registered module.
func LookupModule(name string) (*Module, error) {
	modules.RLock()
	defer modules.RUnlock()
	m, ok := modules.byName[name]
	if !ok {
		return nil, NewProgramError("LookupModule", fmt.Sprintf("module %q not registered", name), nil)
	}
	return m, nil
}

// Program is a module made executable in one form.
type Program struct {
	ctx     *Context
	module  *Module
	form    ProgramForm
	kernels []string
}

// BuildProgram builds the source form of a registered module.
func (ctx *Context) BuildProgram(moduleName string) (*Program, error) {
	m, err := LookupModule(moduleName)
	if err != nil {
		return nil, NewProgramError("BuildProgram", "source build failed", err)
	}
	return &Program{ctx: ctx, module: m, form: FormSource, kernels: m.KernelNames()}, nil
}

// LoadBinary loads a binary image produced by EncodeBinary. The image must
// match the ABI of the registered module kernel for kernel.
func (ctx *Context) LoadBinary(image []byte) (*Program, error) {
	img, err := DecodeBinary(image)
	if err != nil {
		return nil, err
	}
	m, err := LookupModule(img.Module)
	if err != nil {
		return nil, NewProgramError("LoadBinary", "binary references unknown module", err)
	}

	names := make([]string, 0, len(img.Kernels))
	for _, bk := range img.Kernels {
		def, ok := m.Kernel(bk.Name)
		if !ok {
			return nil, NewProgramError("LoadBinary", fmt.Sprintf("kernel %q not present in module %q", bk.Name, m.name), nil)
		}
		if !slices.Equal(def.Params, bk.Params) || def.SharedMem != bk.SharedMem || def.Cooperative != bk.Cooperative {
			return nil, NewProgramError("LoadBinary", fmt.Sprintf("kernel %q ABI mismatch between binary and module", bk.Name), nil)
		}
		names = append(names, bk.Name)
	}
	return &Program{ctx: ctx, module: m, form: FormBinary, kernels: names}, nil
}

// Form returns how the program was produced.
func (p *Program) Form() ProgramForm {
	return p.form
}

// ModuleName returns the module the program was produced from.
func (p *Program) ModuleName() string {
	return p.module.name
}

// KernelNames returns the kernels the program contains.
func (p *Program) KernelNames() []string {
	return slices.Clone(p.kernels)
}

// Kernel extracts a kernel object with no arguments bound.
func (p *Program) Kernel(name string) (*Kernel, error) {
	if !slices.Contains(p.kernels, name) {
		return nil, NewProgramError("Kernel", fmt.Sprintf("kernel %q not found in %s program %q", name, p.form, p.module.name), nil)
	}
	def, _ := p.module.Kernel(name)
	return &Kernel{
		program: p,
		def:     def,
		args:    make([]interface{}, len(def.Params)),
		set:     make([]bool, len(def.Params)),
	}, nil
}

// Kernel is a kernel of a program together with its bound arguments.
type Kernel struct {
	program *Program
	def     *KernelDef

	mu   sync.Mutex
	args []interface{}
	set  []bool
}

// Name returns the kernel name.
func (k *Kernel) Name() string {
	return k.def.Name
}

// Form returns the form of the program the kernel belongs to.
func (k *Kernel) Form() ProgramForm {
	return k.program.form
}

// NumArgs returns the number of parameters in the kernel ABI.
func (k *Kernel) NumArgs() int {
	return len(k.def.Params)
}

// SharedMemBytes returns the block-shared scratch the kernel uses.
func (k *Kernel) SharedMemBytes() int {
	return k.def.SharedMem
}

// SetArg binds argument index. Buffers take a DevicePtr; scalar parameters
// take the matching Go type or a Go int that fits it.
func (k *Kernel) SetArg(index int, value interface{}) error {
	if index < 0 || index >= len(k.def.Params) {
		return NewInvalidArgError("SetArg", fmt.Sprintf("kernel %q has no argument %d", k.def.Name, index))
	}
	v, err := convertArg(k.def.Params[index], value)
	if err != nil {
		return NewInvalidArgError("SetArg", fmt.Sprintf("kernel %q argument %d: %v", k.def.Name, index, err))
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.args[index] = v
	k.set[index] = true
	return nil
}

// SetArgs binds all arguments in order.
func (k *Kernel) SetArgs(values ...interface{}) error {
	if len(values) != len(k.def.Params) {
		return NewInvalidArgError("SetArgs", fmt.Sprintf("kernel %q takes %d arguments, got %d", k.def.Name, len(k.def.Params), len(values)))
	}
	for i, v := range values {
		if err := k.SetArg(i, v); err != nil {
			return err
		}
	}
	return nil
}

func convertArg(kind ParamKind, value interface{}) (interface{}, error) {
	switch kind {
	case ParamBuffer:
		ptr, ok := value.(DevicePtr)
		if !ok {
			return nil, fmt.Errorf("want DevicePtr, got %T", value)
		}
		if ptr.IsNil() {
			return nil, fmt.Errorf("nil buffer")
		}
		return ptr, nil
	case ParamInt32:
		switch v := value.(type) {
		case int32:
			return v, nil
		case int:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("%d overflows int32", v)
			}
			return int32(v), nil
		}
	case ParamUint32:
		switch v := value.(type) {
		case uint32:
			return v, nil
		case int:
			if v < 0 || uint64(v) > math.MaxUint32 {
				return nil, fmt.Errorf("%d overflows uint32", v)
			}
			return uint32(v), nil
		}
	case ParamFloat32:
		switch v := value.(type) {
		case float32:
			return v, nil
		case float64:
			return float32(v), nil
		}
	}
	return nil, fmt.Errorf("want %s, got %T", kind, value)
}

// launch snapshots the bound arguments into a launch of the kernel's form.
func (k *Kernel) launch(op string, grid, block Dim3) (*launchSpec, error) {
	k.mu.Lock()
	for i, ok := range k.set {
		if !ok {
			k.mu.Unlock()
			return nil, NewInvalidArgError(op, fmt.Sprintf("kernel %q argument %d is not set", k.def.Name, i))
		}
	}
	args := slices.Clone(k.args)
	k.mu.Unlock()

	def := k.def
	switch {
	case k.program.form == FormBinary:
		return groupLaunch(op, def.Binary, grid, block, def.SharedMem, args), nil
	case def.Cooperative:
		return cooperativeLaunch(op, def.Source, grid, block, def.SharedMem, args), nil
	default:
		source := def.Source
		return sequentialLaunch(op, func(tid ThreadID, args ...interface{}) {
			source(tid, nil, args...)
		}, grid, block, args), nil
	}
}

// LaunchKernel launches a program kernel over grid on the default stream,
// in the style of a driver-level grid launch.
func (ctx *Context) LaunchKernel(k *Kernel, grid, block Dim3) error {
	return ctx.LaunchKernelStream(k, grid, block, ctx.defaultStream)
}

// LaunchKernelStream launches a program kernel on a specific stream.
func (ctx *Context) LaunchKernelStream(k *Kernel, grid, block Dim3, stream *Stream) error {
	if k.program.ctx != ctx {
		return NewInvalidArgError("LaunchKernel", fmt.Sprintf("kernel %q belongs to another context", k.def.Name))
	}
	l, err := k.launch("LaunchKernel", grid, block)
	if err != nil {
		return err
	}
	return ctx.launchInternal(stream, l)
}
