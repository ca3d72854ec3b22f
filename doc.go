// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fusekernel implements the kernel<->userspace half of the FUSE
// wire protocol: message framing and buffer pooling (msgbuf), the
// read/process worker pools (workerpool), request dispatch and reply
// encoding (dispatch), session/INIT negotiation (session), the inode
// identity cache and path builder (inode), byte-range lock bookkeeping
// (lockengine), a path-based high-level adaptor (pathadaptor), and the
// maintenance thread (maintenance), composed into one mount server by
// fskernel.
//
// A filesystem backend implements provider.Provider (directly, or
// pathadaptor.Backend for a path-addressed backend) and hands it to
// fskernel.New along with an already-open kernel device fd; this module
// never calls mount(2) or mounts a filesystem itself.
package fusekernel
