// Package visit is the public face of fsvisitor: a lazy, depth-first
// directory walker that callers observe and steer through notifications.
//
// Basic usage
//
//	v := visit.New(visit.Ext(".go"))
//	seq, err := v.Search("/path/to/search")
//	if err != nil {
//		return err
//	}
//	for path, err := range seq {
//		if err != nil {
//			return err
//		}
//		fmt.Println(path)
//	}
//
// Steering the walk
//
//	v.OnStart(func() { fmt.Println("Start") })
//	v.OnFinish(func() { fmt.Println("Finish") })
//	v.OnDirectoryFound(func(ev *visit.Event) {
//		if filepath.Base(ev.Path) == "vendor" {
//			ev.ExcludeEntry = true // the path is dropped, its contents are still walked
//		}
//	})
//	v.OnFileFound(func(ev *visit.Event) {
//		if filepath.Base(ev.Path) == "STOP" {
//			ev.StopSearch = true // nothing else is visited; Finish still fires
//		}
//	})
//
// Pull-style iteration
//
//	w, err := v.Walk("/path/to/search")
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	for w.Next() {
//		fmt.Println(w.Path())
//	}
//	return w.Err()
package visit
