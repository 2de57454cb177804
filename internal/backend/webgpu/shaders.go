//go:build windows

package webgpu

// WGSL compute shaders of the backend.
// Using string constants instead of embed for simplicity.

// workgroupSize is the number of threads per workgroup of 1D kernels.
const workgroupSize = 256

// conv2dTile is the workgroup edge of the convolution kernel.
const conv2dTile = 8

// conv2dForwardShader computes one output element per invocation.
// Input is indexed with the descriptor strides, so grouped slices of a larger
// tensor can be passed without packing. Output is packed [N, K, OH, OW].
const conv2dForwardShader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read_write> output: array<f32>;

struct Params {
    batch: u32,
    channels: u32,
    in_height: u32,
    in_width: u32,
    stride_n: u32,
    stride_c: u32,
    stride_h: u32,
    stride_w: u32,
    filters: u32,
    kernel_h: u32,
    kernel_w: u32,
    flip: u32,
    pad_h: u32,
    pad_w: u32,
    conv_stride_h: u32,
    conv_stride_w: u32,
    dilation_h: u32,
    dilation_w: u32,
    out_height: u32,
    out_width: u32,
    filter_nhwc: u32,
    pad0: u32,
    pad1: u32,
    pad2: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let b = global_id.z / params.filters;
    let oc = global_id.z % params.filters;
    let oh = global_id.y;
    let ow = global_id.x;

    if (b >= params.batch || oh >= params.out_height || ow >= params.out_width) {
        return;
    }

    var sum: f32 = 0.0;

    for (var ic: u32 = 0u; ic < params.channels; ic = ic + 1u) {
        for (var r: u32 = 0u; r < params.kernel_h; r = r + 1u) {
            let ih = i32(oh * params.conv_stride_h + r * params.dilation_h) - i32(params.pad_h);
            if (ih < 0 || ih >= i32(params.in_height)) {
                continue;
            }
            for (var s: u32 = 0u; s < params.kernel_w; s = s + 1u) {
                let iw = i32(ow * params.conv_stride_w + s * params.dilation_w) - i32(params.pad_w);
                if (iw < 0 || iw >= i32(params.in_width)) {
                    continue;
                }

                // Convolution mode reads the kernel flipped.
                var kr = r;
                var ks = s;
                if (params.flip != 0u) {
                    kr = params.kernel_h - 1u - r;
                    ks = params.kernel_w - 1u - s;
                }

                var k_idx: u32;
                if (params.filter_nhwc != 0u) {
                    k_idx = ((oc * params.kernel_h + kr) * params.kernel_w + ks) * params.channels + ic;
                } else {
                    k_idx = ((oc * params.channels + ic) * params.kernel_h + kr) * params.kernel_w + ks;
                }

                let in_idx = b * params.stride_n + ic * params.stride_c +
                             u32(ih) * params.stride_h + u32(iw) * params.stride_w;

                sum = sum + input[in_idx] * weights[k_idx];
            }
        }
    }

    let out_idx = ((b * params.filters + oc) * params.out_height + oh) * params.out_width + ow;
    output[out_idx] = sum;
}
`

// addTensorShader computes dest = alpha * source + beta * dest over a packed
// destination. Source strides are zero along broadcast dimensions.
const addTensorShader = `
@group(0) @binding(0) var<storage, read> source: array<f32>;
@group(0) @binding(1) var<storage, read_write> dest: array<f32>;

struct Params {
    size: u32,
    channels: u32,
    height: u32,
    width: u32,
    src_n: u32,
    src_c: u32,
    src_h: u32,
    src_w: u32,
    alpha: f32,
    beta: f32,
    pad0: u32,
    pad1: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }

    let w = idx % params.width;
    let h = (idx / params.width) % params.height;
    let c = (idx / (params.width * params.height)) % params.channels;
    let n = idx / (params.width * params.height * params.channels);

    let src = source[n * params.src_n + c * params.src_c + h * params.src_h + w * params.src_w];
    dest[idx] = params.alpha * src + params.beta * dest[idx];
}
`
