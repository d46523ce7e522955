package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Format 描述 WAV 文件中 PCM 数据的格式。
type Format struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// DecodeWAV 解析 RIFF/WAVE 容器，返回格式信息和 data 块的原始字节。
// 只支持未压缩 PCM（audio format = 1）。
func DecodeWAV(r io.Reader) (Format, []byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Format{}, nil, fmt.Errorf("读取 RIFF 头失败: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("不是合法的 WAV 文件")
	}

	var format Format
	var data []byte
	haveFmt := false

	// 逐个遍历 chunk，直到找到 fmt 和 data
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Format{}, nil, fmt.Errorf("读取 chunk 头失败: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Format{}, nil, fmt.Errorf("fmt 块过短: %d 字节", chunkSize)
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Format{}, nil, fmt.Errorf("读取 fmt 块失败: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(buf[0:2])
			if audioFormat != 1 {
				return Format{}, nil, fmt.Errorf("不支持的编码格式: %d（仅支持 PCM）", audioFormat)
			}
			format.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			format.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			haveFmt = true
		case "data":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, buf); err != nil {
				return Format{}, nil, fmt.Errorf("读取 data 块失败: %w", err)
			}
			data = buf
		default:
			// 跳过无关 chunk（LIST、INFO 等）；chunk 按偶数字节对齐
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, nil, fmt.Errorf("跳过 %s 块失败: %w", chunkID, err)
			}
		}

		if haveFmt && data != nil {
			break
		}
	}

	if !haveFmt {
		return Format{}, nil, fmt.Errorf("缺少 fmt 块")
	}
	if data == nil {
		return Format{}, nil, fmt.Errorf("缺少 data 块")
	}
	return format, data, nil
}

// DecodeWAVFile 打开并解析 WAV 文件。
func DecodeWAVFile(path string) (Format, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Format{}, nil, fmt.Errorf("打开 WAV 文件 %s 失败: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// EncodeWAV 将 16-bit PCM 字节写为 WAV 容器。
func EncodeWAV(w io.Writer, pcm []byte, sampleRate, channels int) error {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("写入 WAV 头失败: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("写入 PCM 数据失败: %w", err)
	}
	return nil
}

// EncodeWAVFile 将 16-bit PCM 字节写为 WAV 文件。
func EncodeWAVFile(path string, pcm []byte, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 WAV 文件 %s 失败: %w", path, err)
	}
	if err := EncodeWAV(f, pcm, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
