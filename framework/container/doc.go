// Package container turns bean definitions into wired, lifecycle-managed
// instances.
//
// # Overview
//
// Definitions (see package beans) describe how to build a component: its
// type, scope, constructor or factory, and the identities it is found
// under. The container stores them in a catalog, resolves dependencies
// recursively, caches singletons and runs every new instance through a
// fixed lifecycle:
//
//	CREATED → AWARE → CONFIGURED → INJECTED → INVOKED → INITIALIZED → (LOADED) → VALIDATED → READY
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithConfig(repo))
//  2. Register definitions or providers: c.Register(defs...)
//  3. Init: c.Init()      (seals the catalog, builds eager singletons)
//  4. Resolve
//  5. Close: c.Close()    (destroys the singletons the container built)
//
// # Definitions
//
//	c.Register(
//	    // constructor, parameters resolved by type
//	    beans.DefineOf[*Mailer]().Constructor(NewMailer).Definition(),
//
//	    // interface implemented by a struct, marked primary
//	    beans.DefineOf[Store]().Implementation(beans.TypeOf[*SQLStore]()).Primary().Definition(),
//
//	    // factory method on another bean
//	    beans.DefineOf[*sql.DB]().ID("db").FactoryMethod(beans.RefType(poolType), "Open").Definition(),
//
//	    // prototype: a fresh instance per lookup
//	    beans.DefineOf[*Request]().Prototype().Definition(),
//	)
//
// # Struct tags
//
//	type Mailer struct {
//	    Store    Store             `autowire:"@"`
//	    Backup   Store             `autowire:"backup,optional"`
//	    Hooks    []Hook            `autowire:"@,qualifier=mail"`
//	    ByName   map[string]Sender `autowire:"@"`
//	    Queue    container.Lazy[*Queue] `autowire:"@"`
//
//	    Host     string        `config:"" validate:"required"`
//	    Timeout  time.Duration `config:"timeout|dial-timeout"`
//
//	    _ struct{} `lifecycle:"init=Open,destroy=Shutdown"`
//	}
//
// # Resolving
//
//	store, err := container.Resolve[Store](c)
//	backup, err := container.ResolveNamed[Store](c, "backup")
//	hooks, err := container.All[Hook](c)
//
// # Cycles
//
// A dependency cycle made of eager edges fails with a
// beans.CircularDependencyError naming the chain. Making one edge a
// Lazy[T] breaks it: the handle is resolved on first Get, after the owner
// is ready.
package container
