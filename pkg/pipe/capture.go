// Package pipe 把只认文件描述符的写出口转接到内存缓冲
package pipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Capture 建一条管道，把 fill 写进写入端的数据收进内存返回。
//
// 参数：
//   - max: 允许收集的字节上限，超出视作产物异常而报错
//   - fill: 拿到写入端后负责写入全部数据
//
// 返回值：
//   - []byte: 收到的完整数据
//   - error: 建管道、写入、排空或超限的错误
//
// 注意：超限后读端继续排空丢弃，fill 不会因为管道塞满而卡死
func Capture(max int64, fill func(w *os.File) error) ([]byte, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("pipe: create: %w", err)
	}

	var (
		buf     bytes.Buffer
		readErr error
		done    = make(chan struct{})
	)
	go func() {
		_, readErr = io.Copy(&buf, io.LimitReader(r, max+1))
		if readErr == nil {
			// 排空剩余数据，写入端不因管道塞满而阻塞
			_, _ = io.Copy(io.Discard, r)
		}
		r.Close()
		close(done)
	}()

	fillErr := fill(w)
	w.Close()
	<-done

	if fillErr != nil {
		return nil, fillErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("pipe: drain: %w", readErr)
	}
	if int64(buf.Len()) > max {
		return nil, fmt.Errorf("pipe: capture exceeds %d bytes", max)
	}
	return buf.Bytes(), nil
}
